// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package nodealloc

import (
	"errors"
	"testing"

	"github.com/Fantom-foundation/Chainbase/common"
	"github.com/Fantom-foundation/Chainbase/segment"
)

func testAllocator(t *testing.T, cellSize int64) (*segment.Manager, *Allocator) {
	t.Helper()
	seg, err := segment.NewMemory(1 << 20)
	if err != nil {
		t.Fatalf("failed to create segment: %v", err)
	}
	slot, err := seg.Allocate(8)
	if err != nil {
		t.Fatalf("failed to allocate head slot: %v", err)
	}
	alloc, err := New(seg, cellSize, slot)
	if err != nil {
		t.Fatalf("failed to create allocator: %v", err)
	}
	return seg, alloc
}

func TestAllocator_InvalidCellSizesAreRejected(t *testing.T) {
	seg, err := segment.NewMemory(1 << 16)
	if err != nil {
		t.Fatalf("failed to create segment: %v", err)
	}
	slot, err := seg.Allocate(8)
	if err != nil {
		t.Fatalf("failed to allocate head slot: %v", err)
	}
	if _, err := New(seg, 4, slot); !errors.Is(err, common.ErrLogic) {
		t.Errorf("cell size below the free-list cell not rejected, got %v", err)
	}
	if _, err := New(seg, 20, slot); !errors.Is(err, common.ErrLogic) {
		t.Errorf("misaligned cell size not rejected, got %v", err)
	}
	if _, err := New(seg, 24, 0); !errors.Is(err, common.ErrLogic) {
		t.Errorf("null head slot not rejected, got %v", err)
	}
}

func TestAllocator_ChunkIsThreadedOnFirstAllocation(t *testing.T) {
	seg, alloc := testAllocator(t, 32)
	before := seg.FreeMemory()
	first, err := alloc.Allocate(1)
	if err != nil {
		t.Fatalf("failed to allocate: %v", err)
	}
	if got, want := before-seg.FreeMemory(), int64(chunkCells*32); got != want {
		t.Errorf("first allocation fetched %d bytes, wanted a chunk of %d", got, want)
	}
	// the remaining 63 cells come out of the chunk without touching the
	// segment manager
	after := seg.FreeMemory()
	last := first
	for i := 0; i < chunkCells-1; i++ {
		cell, err := alloc.Allocate(1)
		if err != nil {
			t.Fatalf("failed to allocate cell %d: %v", i, err)
		}
		if cell != last+32 {
			t.Fatalf("chunk cells not served in order, got %d after %d", cell, last)
		}
		last = cell
	}
	if got := seg.FreeMemory(); got != after {
		t.Errorf("chunk allocations consumed segment memory, %d != %d", got, after)
	}
}

func TestAllocator_FreedCellsAreReusedInLIFOOrder(t *testing.T) {
	_, alloc := testAllocator(t, 32)
	a, _ := alloc.Allocate(1)
	b, _ := alloc.Allocate(1)
	alloc.Deallocate(a, 1)
	alloc.Deallocate(b, 1)
	if got, err := alloc.Allocate(1); err != nil || got != b {
		t.Errorf("expected most recently freed cell %d, got %d (%v)", b, got, err)
	}
	if got, err := alloc.Allocate(1); err != nil || got != a {
		t.Errorf("expected cell %d, got %d (%v)", a, got, err)
	}
}

func TestAllocator_MultiCellRequestsBypassTheFreeList(t *testing.T) {
	seg, alloc := testAllocator(t, 32)
	one, err := alloc.Allocate(1)
	if err != nil {
		t.Fatalf("failed to allocate: %v", err)
	}
	alloc.Deallocate(one, 1)
	before := seg.FreeMemory()
	block, err := alloc.Allocate(4)
	if err != nil {
		t.Fatalf("failed to allocate block: %v", err)
	}
	if block == one {
		t.Errorf("multi-cell request served from the free list")
	}
	if got, want := before-seg.FreeMemory(), int64(4*32); got != want {
		t.Errorf("block consumed %d bytes, wanted %d", got, want)
	}
	alloc.Deallocate(block, 4)
	again, err := alloc.Allocate(4)
	if err != nil {
		t.Fatalf("failed to re-allocate block: %v", err)
	}
	if again != block {
		t.Errorf("freed block not recycled, got %d, wanted %d", again, block)
	}
}

func TestAllocator_FreeListSurvivesReattach(t *testing.T) {
	seg, err := segment.NewMemory(1 << 20)
	if err != nil {
		t.Fatalf("failed to create segment: %v", err)
	}
	slot, err := seg.Allocate(8)
	if err != nil {
		t.Fatalf("failed to allocate head slot: %v", err)
	}
	alloc, err := New(seg, 64, slot)
	if err != nil {
		t.Fatalf("failed to create allocator: %v", err)
	}
	cell, err := alloc.Allocate(1)
	if err != nil {
		t.Fatalf("failed to allocate: %v", err)
	}
	alloc.Deallocate(cell, 1)

	// a fresh allocator over the same slot sees the recycled cell
	other, err := New(seg, 64, slot)
	if err != nil {
		t.Fatalf("failed to re-create allocator: %v", err)
	}
	if got, err := other.Allocate(1); err != nil || got != cell {
		t.Errorf("persisted free list lost, got %d (%v), wanted %d", got, err, cell)
	}
}

func TestAllocator_AuxiliarySegmentHandles(t *testing.T) {
	_, alloc := testAllocator(t, 32)
	if alloc.Second() != nil || alloc.Third() != nil {
		t.Fatalf("fresh allocator carries auxiliary segments")
	}
	second, _ := segment.NewMemory(1 << 16)
	third, _ := segment.NewMemory(1 << 16)
	alloc.SetSecond(second)
	alloc.SetThird(third)
	if alloc.Second() != second {
		t.Errorf("second segment handle not propagated")
	}
	if alloc.Third() != third {
		t.Errorf("third segment handle not propagated")
	}
}
