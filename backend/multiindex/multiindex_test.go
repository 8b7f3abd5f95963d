// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package multiindex

import (
	"encoding/binary"
	"testing"

	"github.com/Fantom-foundation/Chainbase/backend/avltree"
	"github.com/Fantom-foundation/Chainbase/backend/hook"
	"github.com/Fantom-foundation/Chainbase/segment"
)

// test nodes carry two hooks and two uint64 keys
const (
	testKey0Off   = 2 * hook.Size
	testKey1Off   = 2*hook.Size + 8
	testNodeSize  = 2*hook.Size + 16
	testIndexKeys = 2
)

type testSet struct {
	seg *segment.Manager
	set *Set
}

func newTestSet(t *testing.T) *testSet {
	t.Helper()
	seg, err := segment.NewMemory(1 << 20)
	if err != nil {
		t.Fatalf("failed to create segment: %v", err)
	}
	res := &testSet{seg: seg}
	trees := make([]*avltree.Tree, testIndexKeys)
	for i := 0; i < testIndexKeys; i++ {
		slot, err := seg.Allocate(avltree.SlotSize)
		if err != nil {
			t.Fatalf("failed to allocate root slot: %v", err)
		}
		keyOff := int64(testKey0Off + 8*i)
		trees[i] = avltree.New(seg, slot, int64(i)*hook.Size, func(a, b segment.Offset) int {
			ka := binary.LittleEndian.Uint64(seg.Bytes(a+segment.Offset(keyOff), 8))
			kb := binary.LittleEndian.Uint64(seg.Bytes(b+segment.Offset(keyOff), 8))
			switch {
			case ka < kb:
				return -1
			case ka > kb:
				return 1
			default:
				return 0
			}
		})
	}
	res.set = New(trees)
	return res
}

func (ts *testSet) newNode(t *testing.T, k0, k1 uint64) segment.Offset {
	t.Helper()
	n, err := ts.seg.Allocate(testNodeSize)
	if err != nil {
		t.Fatalf("failed to allocate node: %v", err)
	}
	hook.Clear(ts.seg.Data(), int64(n))
	hook.Clear(ts.seg.Data(), int64(n)+hook.Size)
	binary.LittleEndian.PutUint64(ts.seg.Bytes(n+testKey0Off, 8), k0)
	binary.LittleEndian.PutUint64(ts.seg.Bytes(n+testKey1Off, 8), k1)
	return n
}

func (ts *testSet) setKey1(n segment.Offset, k1 uint64) {
	binary.LittleEndian.PutUint64(ts.seg.Bytes(n+testKey1Off, 8), k1)
}

func TestSet_InsertLinksAllIndexes(t *testing.T) {
	ts := newTestSet(t)
	n := ts.newNode(t, 1, 10)
	if _, ok := ts.set.Insert(0, n); !ok {
		t.Fatalf("insert failed")
	}
	for i := 0; i < ts.set.Count(); i++ {
		if got, want := ts.set.Index(i).Size(), int64(1); got != want {
			t.Errorf("index %d holds %d nodes, wanted %d", i, got, want)
		}
	}
}

func TestSet_ConflictRollsBackEarlierIndexes(t *testing.T) {
	ts := newTestSet(t)
	if _, ok := ts.set.Insert(0, ts.newNode(t, 1, 10)); !ok {
		t.Fatalf("insert failed")
	}
	conflicting := ts.newNode(t, 2, 10)
	conflict, ok := ts.set.Insert(0, conflicting)
	if ok {
		t.Fatalf("conflicting insert succeeded")
	}
	if conflict != 1 {
		t.Errorf("conflict reported at index %d, wanted 1", conflict)
	}
	if got, want := ts.set.Index(0).Size(), int64(1); got != want {
		t.Errorf("index 0 not rolled back, holds %d nodes, wanted %d", got, want)
	}
	if got, want := ts.set.Index(1).Size(), int64(1); got != want {
		t.Errorf("index 1 holds %d nodes, wanted %d", got, want)
	}
}

func TestSet_EraseUnlinksAllIndexes(t *testing.T) {
	ts := newTestSet(t)
	n := ts.newNode(t, 1, 10)
	ts.set.Insert(0, n)
	ts.set.Insert(0, ts.newNode(t, 2, 20))
	ts.set.Erase(0, n)
	for i := 0; i < ts.set.Count(); i++ {
		if got, want := ts.set.Index(i).Size(), int64(1); got != want {
			t.Errorf("index %d holds %d nodes after erase, wanted %d", i, got, want)
		}
	}
}

func TestSet_PostModifyReSeatsShiftedNode(t *testing.T) {
	ts := newTestSet(t)
	a := ts.newNode(t, 1, 10)
	b := ts.newNode(t, 2, 20)
	c := ts.newNode(t, 3, 30)
	for _, n := range []segment.Offset{a, b, c} {
		ts.set.Insert(0, n)
	}
	// move a's secondary key past c's
	ts.setKey1(a, 40)
	if !ts.set.PostModify(0, a, true) {
		t.Fatalf("post-modify failed")
	}
	var order []segment.Offset
	ts.set.Index(1).ForEach(func(n segment.Offset) {
		order = append(order, n)
	})
	want := []segment.Offset{b, c, a}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("secondary index order wrong after post-modify: %v", order)
		}
	}
}

func TestSet_PostModifyReportsConflictAndKeepsNodeLinked(t *testing.T) {
	ts := newTestSet(t)
	a := ts.newNode(t, 1, 10)
	b := ts.newNode(t, 2, 20)
	ts.set.Insert(0, a)
	ts.set.Insert(0, b)
	ts.setKey1(a, 20)
	if ts.set.PostModify(0, a, true) {
		t.Fatalf("conflicting post-modify succeeded")
	}
	// the node stays linked so the caller can restore the old value and
	// re-run post-modify
	if got, want := ts.set.Index(1).Size(), int64(2); got != want {
		t.Fatalf("node unlinked on conflict, index 1 holds %d nodes", got)
	}
	ts.setKey1(a, 10)
	if !ts.set.PostModify(0, a, true) {
		t.Fatalf("restoring post-modify failed")
	}
}
