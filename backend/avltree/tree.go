// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package avltree implements an ordered unique set as an intrusive AVL
// tree over offset-node hooks.
//
// The tree owns no node storage. Nodes live somewhere in a segment, carry
// one hook per tree they participate in, and are identified by their
// segment offset. The tree only records its root and size in a persisted
// 16-byte slot and navigates through the hooks, so the whole structure is
// position independent. Balance factors use the hook's 2-bit field with
// the convention positive = right heavy.
//
// A link offset that turns out unaligned or out of range means the image
// is corrupted; the tree treats that as fatal and panics, per the error
// contract of the hook layer.
package avltree

import (
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/Chainbase/backend/hook"
	"github.com/Fantom-foundation/Chainbase/segment"
)

// SlotSize is the size of the persisted root slot of one tree.
const SlotSize = 16

// Compare orders the values of two nodes given their offsets.
type Compare func(a, b segment.Offset) int

// Probe compares a search key against the value of the node at the given
// offset; negative means the key orders before the node's value.
type Probe func(n segment.Offset) int

// Tree is an ordered unique set of nodes threaded through the hook at a
// fixed position inside each node.
type Tree struct {
	seg     *segment.Manager
	slot    segment.Offset
	hookPos int64
	compare Compare
}

// New attaches a tree to its persisted slot. The slot must either be
// zeroed (empty tree) or hold the root written by a previous run.
func New(seg *segment.Manager, slot segment.Offset, hookPos int64, compare Compare) *Tree {
	return &Tree{seg: seg, slot: slot, hookPos: hookPos, compare: compare}
}

// Root returns the offset of the root node, or 0 for an empty tree.
func (t *Tree) Root() segment.Offset {
	return segment.Offset(binary.LittleEndian.Uint64(t.seg.Bytes(t.slot, 8)))
}

// Size returns the number of nodes in the tree.
func (t *Tree) Size() int64 {
	return int64(binary.LittleEndian.Uint64(t.seg.Bytes(t.slot+8, 8)))
}

// Empty reports whether the tree holds no nodes.
func (t *Tree) Empty() bool {
	return t.Root() == 0
}

func (t *Tree) setRoot(n segment.Offset) {
	binary.LittleEndian.PutUint64(t.seg.Bytes(t.slot, 8), uint64(n))
}

func (t *Tree) setSize(s int64) {
	binary.LittleEndian.PutUint64(t.seg.Bytes(t.slot+8, 8), uint64(s))
}

// hook offset of node n for this tree
func (t *Tree) h(n segment.Offset) int64 {
	return int64(n) + t.hookPos
}

// node offset of hook at h
func (t *Tree) n(h int64) segment.Offset {
	return segment.Offset(h - t.hookPos)
}

func (t *Tree) parent(n segment.Offset) segment.Offset {
	if h, ok := hook.GetLink(t.seg.Data(), t.h(n), hook.Parent); ok {
		return t.n(h)
	}
	return 0
}

func (t *Tree) left(n segment.Offset) segment.Offset {
	if h, ok := hook.GetLink(t.seg.Data(), t.h(n), hook.Left); ok {
		return t.n(h)
	}
	return 0
}

func (t *Tree) right(n segment.Offset) segment.Offset {
	if h, ok := hook.GetLink(t.seg.Data(), t.h(n), hook.Right); ok {
		return t.n(h)
	}
	return 0
}

func (t *Tree) setParent(n, p segment.Offset) {
	t.setLink(n, hook.Parent, p)
}

func (t *Tree) setLeft(n, c segment.Offset) {
	t.setLink(n, hook.Left, c)
}

func (t *Tree) setRight(n, c segment.Offset) {
	t.setLink(n, hook.Right, c)
}

func (t *Tree) setLink(n segment.Offset, f hook.Field, target segment.Offset) {
	if target == 0 {
		hook.SetNull(t.seg.Data(), t.h(n), f)
		return
	}
	if err := hook.SetLink(t.seg.Data(), t.h(n), f, t.h(target)); err != nil {
		panic(fmt.Sprintf("avltree: %v", err))
	}
}

func (t *Tree) balance(n segment.Offset) int {
	return hook.Balance(t.seg.Data(), t.h(n))
}

func (t *Tree) setBalance(n segment.Offset, b int) {
	hook.SetBalance(t.seg.Data(), t.h(n), b)
}

// Compare orders the values of two linked nodes with this tree's
// comparator.
func (t *Tree) Compare(a, b segment.Offset) int {
	return t.compare(a, b)
}

// Find returns the node matching the probe.
func (t *Tree) Find(probe Probe) (segment.Offset, bool) {
	n := t.Root()
	for n != 0 {
		switch c := probe(n); {
		case c < 0:
			n = t.left(n)
		case c > 0:
			n = t.right(n)
		default:
			return n, true
		}
	}
	return 0, false
}

// LowerBound returns the first node whose value does not order before the
// probe key, or 0 when all values do.
func (t *Tree) LowerBound(probe Probe) segment.Offset {
	n, candidate := t.Root(), segment.Offset(0)
	for n != 0 {
		if probe(n) <= 0 {
			candidate = n
			n = t.left(n)
		} else {
			n = t.right(n)
		}
	}
	return candidate
}

// UpperBound returns the first node whose value orders strictly after the
// probe key, or 0 when none does.
func (t *Tree) UpperBound(probe Probe) segment.Offset {
	n, candidate := t.Root(), segment.Offset(0)
	for n != 0 {
		if probe(n) < 0 {
			candidate = n
			n = t.left(n)
		} else {
			n = t.right(n)
		}
	}
	return candidate
}

// Begin returns the smallest node, or 0 for an empty tree.
func (t *Tree) Begin() segment.Offset {
	n := t.Root()
	if n == 0 {
		return 0
	}
	return t.leftmost(n)
}

// Last returns the largest node, or 0 for an empty tree.
func (t *Tree) Last() segment.Offset {
	n := t.Root()
	if n == 0 {
		return 0
	}
	return t.rightmost(n)
}

// Next returns the in-order successor of n, or 0 at the end.
func (t *Tree) Next(n segment.Offset) segment.Offset {
	if r := t.right(n); r != 0 {
		return t.leftmost(r)
	}
	p := t.parent(n)
	for p != 0 && t.right(p) == n {
		n, p = p, t.parent(p)
	}
	return p
}

// Prev returns the in-order predecessor of n, or 0 at the beginning.
func (t *Tree) Prev(n segment.Offset) segment.Offset {
	if l := t.left(n); l != 0 {
		return t.rightmost(l)
	}
	p := t.parent(n)
	for p != 0 && t.left(p) == n {
		n, p = p, t.parent(p)
	}
	return p
}

func (t *Tree) leftmost(n segment.Offset) segment.Offset {
	for {
		l := t.left(n)
		if l == 0 {
			return n
		}
		n = l
	}
}

func (t *Tree) rightmost(n segment.Offset) segment.Offset {
	for {
		r := t.right(n)
		if r == 0 {
			return n
		}
		n = r
	}
}

// InsertUnique links node n into the tree. When a node with an equal
// value is already present, nothing is linked and that node is returned
// with inserted == false.
func (t *Tree) InsertUnique(n segment.Offset) (pos segment.Offset, inserted bool) {
	cur := t.Root()
	if cur == 0 {
		t.attach(n, 0)
		return n, true
	}
	for {
		c := t.compare(n, cur)
		if c == 0 {
			return cur, false
		}
		if c < 0 {
			l := t.left(cur)
			if l == 0 {
				t.attachLeft(n, cur)
				return n, true
			}
			cur = l
		} else {
			r := t.right(cur)
			if r == 0 {
				t.attachRight(n, cur)
				return n, true
			}
			cur = r
		}
	}
}

// InsertEqual links node n into the tree even when an equal value is
// already present; the new node is placed after its equals. Undo
// processing uses this to tolerate duplicates that are transient while
// the container is being rolled back to an older state.
func (t *Tree) InsertEqual(n segment.Offset) {
	cur := t.Root()
	if cur == 0 {
		t.attach(n, 0)
		return
	}
	for {
		if t.compare(n, cur) < 0 {
			l := t.left(cur)
			if l == 0 {
				t.attachLeft(n, cur)
				return
			}
			cur = l
		} else {
			r := t.right(cur)
			if r == 0 {
				t.attachRight(n, cur)
				return
			}
			cur = r
		}
	}
}

// InsertBefore links node n immediately before pos in iteration order,
// without consulting the comparator. pos == 0 appends at the end. The
// caller is responsible for the resulting order; the container uses this
// to keep a conflicting node linked while a failed modification is being
// rolled back.
func (t *Tree) InsertBefore(pos, n segment.Offset) {
	if t.Root() == 0 {
		t.attach(n, 0)
		return
	}
	if pos == 0 {
		t.attachRight(n, t.rightmost(t.Root()))
		return
	}
	if l := t.left(pos); l != 0 {
		t.attachRight(n, t.rightmost(l))
		return
	}
	t.attachLeft(n, pos)
}

// PushBack links node n as the largest element without consulting the
// comparator. Valid only when n's value orders at the end.
func (t *Tree) PushBack(n segment.Offset) {
	t.InsertBefore(0, n)
}

func (t *Tree) attachLeft(n, p segment.Offset) {
	t.setLeft(p, n)
	t.attach(n, p)
}

func (t *Tree) attachRight(n, p segment.Offset) {
	t.setRight(p, n)
	t.attach(n, p)
}

// attach finishes linking leaf n under p and retraces balances upwards.
func (t *Tree) attach(n, p segment.Offset) {
	t.setParent(n, p)
	t.setLeft(n, 0)
	t.setRight(n, 0)
	t.setBalance(n, 0)
	t.setSize(t.Size() + 1)
	if p == 0 {
		t.setRoot(n)
		return
	}
	t.retraceInsert(n, p)
}

// retraceInsert walks from the freshly linked leaf towards the root,
// updating balances and rotating once where the tree got out of shape.
func (t *Tree) retraceInsert(child, p segment.Offset) {
	for p != 0 {
		g := t.parent(p)
		pIsLeft := g != 0 && t.left(g) == p
		if t.right(p) == child {
			switch t.balance(p) {
			case 1:
				var nr segment.Offset
				if t.balance(child) < 0 {
					nr = t.rotateRightLeft(p)
				} else {
					nr = t.rotateLeft(p)
				}
				t.relink(nr, g, pIsLeft)
				return
			case -1:
				t.setBalance(p, 0)
				return
			default:
				t.setBalance(p, 1)
			}
		} else {
			switch t.balance(p) {
			case -1:
				var nr segment.Offset
				if t.balance(child) > 0 {
					nr = t.rotateLeftRight(p)
				} else {
					nr = t.rotateRight(p)
				}
				t.relink(nr, g, pIsLeft)
				return
			case 1:
				t.setBalance(p, 0)
				return
			default:
				t.setBalance(p, -1)
			}
		}
		child, p = p, g
	}
}

// Erase unlinks node n from the tree. The node's hook is left in an
// unspecified state.
func (t *Tree) Erase(n segment.Offset) {
	p := t.parent(n)
	l, r := t.left(n), t.right(n)

	var retraceFrom segment.Offset
	var leftShrank bool

	switch {
	case l == 0 || r == 0:
		c := l
		if c == 0 {
			c = r
		}
		if c != 0 {
			t.setParent(c, p)
		}
		if p == 0 {
			t.setRoot(c)
		} else if t.left(p) == n {
			t.setLeft(p, c)
			retraceFrom, leftShrank = p, true
		} else {
			t.setRight(p, c)
			retraceFrom, leftShrank = p, false
		}
	default:
		// Two children: splice the in-order successor into n's place.
		s := t.leftmost(r)
		ps := t.parent(s)
		sr := t.right(s)
		if ps != n {
			t.setLeft(ps, sr)
			if sr != 0 {
				t.setParent(sr, ps)
			}
			t.setRight(s, r)
			t.setParent(r, s)
			retraceFrom, leftShrank = ps, true
		} else {
			retraceFrom, leftShrank = s, false
		}
		t.setLeft(s, l)
		t.setParent(l, s)
		t.setParent(s, p)
		t.setBalance(s, t.balance(n))
		if p == 0 {
			t.setRoot(s)
		} else if t.left(p) == n {
			t.setLeft(p, s)
		} else {
			t.setRight(p, s)
		}
	}

	t.setSize(t.Size() - 1)
	if retraceFrom != 0 {
		t.retraceDelete(retraceFrom, leftShrank)
	}
}

// retraceDelete walks upwards from the parent whose subtree on the given
// side lost one level of height.
func (t *Tree) retraceDelete(p segment.Offset, leftShrank bool) {
	for p != 0 {
		g := t.parent(p)
		pIsLeft := g != 0 && t.left(g) == p
		if leftShrank {
			switch t.balance(p) {
			case 1:
				z := t.right(p)
				b := t.balance(z)
				var nr segment.Offset
				if b < 0 {
					nr = t.rotateRightLeft(p)
				} else {
					nr = t.rotateLeft(p)
				}
				t.relink(nr, g, pIsLeft)
				if b == 0 {
					return
				}
			case 0:
				t.setBalance(p, 1)
				return
			default:
				t.setBalance(p, 0)
			}
		} else {
			switch t.balance(p) {
			case -1:
				z := t.left(p)
				b := t.balance(z)
				var nr segment.Offset
				if b > 0 {
					nr = t.rotateLeftRight(p)
				} else {
					nr = t.rotateRight(p)
				}
				t.relink(nr, g, pIsLeft)
				if b == 0 {
					return
				}
			case 0:
				t.setBalance(p, -1)
				return
			default:
				t.setBalance(p, 0)
			}
		}
		leftShrank = pIsLeft
		p = g
	}
}

// relink installs the root of a rotated subtree under g, or as tree root.
func (t *Tree) relink(nr, g segment.Offset, asLeft bool) {
	t.setParent(nr, g)
	if g == 0 {
		t.setRoot(nr)
	} else if asLeft {
		t.setLeft(g, nr)
	} else {
		t.setRight(g, nr)
	}
}

// rotateLeft rotates around x with its right child z as pivot and returns
// the new subtree root. Balance updates follow the textbook cases; the
// z-balance-zero case only arises on deletion.
func (t *Tree) rotateLeft(x segment.Offset) segment.Offset {
	z := t.right(x)
	inner := t.left(z)
	t.setRight(x, inner)
	if inner != 0 {
		t.setParent(inner, x)
	}
	t.setLeft(z, x)
	t.setParent(x, z)
	if t.balance(z) == 0 {
		t.setBalance(x, 1)
		t.setBalance(z, -1)
	} else {
		t.setBalance(x, 0)
		t.setBalance(z, 0)
	}
	return z
}

func (t *Tree) rotateRight(x segment.Offset) segment.Offset {
	z := t.left(x)
	inner := t.right(z)
	t.setLeft(x, inner)
	if inner != 0 {
		t.setParent(inner, x)
	}
	t.setRight(z, x)
	t.setParent(x, z)
	if t.balance(z) == 0 {
		t.setBalance(x, -1)
		t.setBalance(z, 1)
	} else {
		t.setBalance(x, 0)
		t.setBalance(z, 0)
	}
	return z
}

// rotateRightLeft performs the double rotation for a right-left shape and
// returns the new subtree root.
func (t *Tree) rotateRightLeft(x segment.Offset) segment.Offset {
	z := t.right(x)
	y := t.left(z)
	t2 := t.right(y)
	t.setLeft(z, t2)
	if t2 != 0 {
		t.setParent(t2, z)
	}
	t.setRight(y, z)
	t.setParent(z, y)
	t3 := t.left(y)
	t.setRight(x, t3)
	if t3 != 0 {
		t.setParent(t3, x)
	}
	t.setLeft(y, x)
	t.setParent(x, y)
	switch b := t.balance(y); {
	case b == 0:
		t.setBalance(x, 0)
		t.setBalance(z, 0)
	case b > 0:
		t.setBalance(x, -1)
		t.setBalance(z, 0)
	default:
		t.setBalance(x, 0)
		t.setBalance(z, 1)
	}
	t.setBalance(y, 0)
	return y
}

func (t *Tree) rotateLeftRight(x segment.Offset) segment.Offset {
	z := t.left(x)
	y := t.right(z)
	t2 := t.left(y)
	t.setRight(z, t2)
	if t2 != 0 {
		t.setParent(t2, z)
	}
	t.setLeft(y, z)
	t.setParent(z, y)
	t3 := t.right(y)
	t.setLeft(x, t3)
	if t3 != 0 {
		t.setParent(t3, x)
	}
	t.setRight(y, x)
	t.setParent(x, y)
	switch b := t.balance(y); {
	case b == 0:
		t.setBalance(x, 0)
		t.setBalance(z, 0)
	case b < 0:
		t.setBalance(x, 1)
		t.setBalance(z, 0)
	default:
		t.setBalance(x, 0)
		t.setBalance(z, -1)
	}
	t.setBalance(y, 0)
	return y
}

// ForEach visits all nodes in order.
func (t *Tree) ForEach(visit func(n segment.Offset)) {
	for n := t.Begin(); n != 0; n = t.Next(n) {
		visit(n)
	}
}

// checkProperties verifies the AVL shape, the stored balances, parent
// links, and the strict ordering of values. Used by tests.
func (t *Tree) checkProperties() error {
	root := t.Root()
	if root == 0 {
		if t.Size() != 0 {
			return fmt.Errorf("empty tree reports size %d", t.Size())
		}
		return nil
	}
	if p := t.parent(root); p != 0 {
		return fmt.Errorf("root node %d has parent %d", root, p)
	}
	count := int64(0)
	if _, err := t.checkSubtree(root, &count); err != nil {
		return err
	}
	if count != t.Size() {
		return fmt.Errorf("tree holds %d nodes but reports size %d", count, t.Size())
	}
	var prev segment.Offset
	for n := t.Begin(); n != 0; n = t.Next(n) {
		if prev != 0 && t.compare(prev, n) >= 0 {
			return fmt.Errorf("nodes %d and %d are out of order", prev, n)
		}
		prev = n
	}
	return nil
}

func (t *Tree) checkSubtree(n segment.Offset, count *int64) (int, error) {
	*count++
	var hl, hr int
	if l := t.left(n); l != 0 {
		if t.parent(l) != n {
			return 0, fmt.Errorf("node %d has a broken parent link", l)
		}
		var err error
		if hl, err = t.checkSubtree(l, count); err != nil {
			return 0, err
		}
	}
	if r := t.right(n); r != 0 {
		if t.parent(r) != n {
			return 0, fmt.Errorf("node %d has a broken parent link", r)
		}
		var err error
		if hr, err = t.checkSubtree(r, count); err != nil {
			return 0, err
		}
	}
	if hr-hl < -1 || hr-hl > 1 {
		return 0, fmt.Errorf("node %d violates the AVL height bound", n)
	}
	if got, want := t.balance(n), hr-hl; got != want {
		return 0, fmt.Errorf("node %d stores balance %d, structure says %d", n, got, want)
	}
	if hr > hl {
		return hr + 1, nil
	}
	return hl + 1, nil
}
