// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package nodealloc serves fixed-size node allocations out of a segment.
//
// Single-node allocations, which dominate container traffic, are served
// from an intrusive free list threaded through the freed cells themselves:
// the first 8 bytes of a free cell hold the segment offset of the next
// free cell. The head of the list is persisted in a caller-provided slot
// inside the segment, so recycled cells survive a restart together with
// the rest of the image. When the list is empty a chunk of 64 cells is
// requested from the segment manager and threaded onto the list.
// Multi-cell requests bypass the list and go to the segment manager
// directly.
package nodealloc

import (
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/Chainbase/common"
	"github.com/Fantom-foundation/Chainbase/segment"
)

const (
	// freeCellSize is the space a cell must provide for list threading.
	freeCellSize = 8

	// chunkCells is the number of cells fetched from the segment manager
	// when the free list runs empty.
	chunkCells = 64
)

// Allocator is a free-listed allocator of cells of one fixed size.
//
// Besides its own segment, an allocator can carry references to a second
// and third segment manager. These are not used by the allocator itself;
// it only stores them and returns them from Second and Third. No package
// in this module reads them; shared.Bytes takes its segment from the
// caller instead.
type Allocator struct {
	seg      *segment.Manager
	cellSize int64
	headSlot segment.Offset

	second *segment.Manager
	third  *segment.Manager
}

// New creates an allocator of cells of the given size whose free-list
// head lives in the 8-byte segment slot at headSlot. The cell size must
// fit the free-list threading and keep every cell 8-byte aligned.
func New(seg *segment.Manager, cellSize int64, headSlot segment.Offset) (*Allocator, error) {
	if cellSize < freeCellSize {
		return nil, fmt.Errorf("%w: cell size %d too small for free list", common.ErrLogic, cellSize)
	}
	if cellSize%freeCellSize != 0 {
		return nil, fmt.Errorf("%w: cell size %d breaks free list alignment", common.ErrLogic, cellSize)
	}
	if headSlot == 0 {
		return nil, fmt.Errorf("%w: allocator needs a persisted head slot", common.ErrLogic)
	}
	return &Allocator{seg: seg, cellSize: cellSize, headSlot: headSlot}, nil
}

// CellSize returns the fixed size served by this allocator.
func (a *Allocator) CellSize() int64 {
	return a.cellSize
}

// SegmentManager returns the manager backing this allocator.
func (a *Allocator) SegmentManager() *segment.Manager {
	return a.seg
}

// Allocate returns storage for n contiguous cells. Single-cell requests
// are served from the free list.
func (a *Allocator) Allocate(n int64) (segment.Offset, error) {
	if n != 1 {
		return a.seg.Allocate(n * a.cellSize)
	}
	head := a.head()
	if head == 0 {
		if err := a.refill(); err != nil {
			return 0, err
		}
		head = a.head()
	}
	next := segment.Offset(binary.LittleEndian.Uint64(a.seg.Bytes(head, 8)))
	a.setHead(next)
	return head, nil
}

// Deallocate returns storage obtained from Allocate. Single cells are
// pushed onto the free list; larger blocks go back to the segment
// manager.
func (a *Allocator) Deallocate(off segment.Offset, n int64) {
	if n != 1 {
		a.seg.Free(off, n*a.cellSize)
		return
	}
	binary.LittleEndian.PutUint64(a.seg.Bytes(off, 8), uint64(a.head()))
	a.setHead(off)
}

// SetSecond attaches the segment manager nested containers should draw
// copy-on-write allocations from.
func (a *Allocator) SetSecond(m *segment.Manager) {
	a.second = m
}

// SetThird attaches a further segment manager for nested containers.
func (a *Allocator) SetThird(m *segment.Manager) {
	a.third = m
}

// Second returns the attached second segment manager, if any.
func (a *Allocator) Second() *segment.Manager {
	return a.second
}

// Third returns the attached third segment manager, if any.
func (a *Allocator) Third() *segment.Manager {
	return a.third
}

func (a *Allocator) head() segment.Offset {
	return segment.Offset(binary.LittleEndian.Uint64(a.seg.Bytes(a.headSlot, 8)))
}

func (a *Allocator) setHead(off segment.Offset) {
	binary.LittleEndian.PutUint64(a.seg.Bytes(a.headSlot, 8), uint64(off))
}

// refill fetches one chunk from the segment manager and threads its cells
// onto the free list. The last cell terminates the list.
func (a *Allocator) refill() error {
	chunk, err := a.seg.Allocate(chunkCells * a.cellSize)
	if err != nil {
		return err
	}
	cell := chunk
	for i := 0; i < chunkCells-1; i++ {
		next := cell + segment.Offset(a.cellSize)
		binary.LittleEndian.PutUint64(a.seg.Bytes(cell, 8), uint64(next))
		cell = next
	}
	binary.LittleEndian.PutUint64(a.seg.Bytes(cell, 8), 0)
	a.setHead(chunk)
	return nil
}
