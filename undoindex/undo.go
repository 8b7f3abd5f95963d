// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package undoindex

import (
	"github.com/Fantom-foundation/Chainbase/segment"
)

// Session is the scoped handle of one undo checkpoint. A session that is
// neither pushed nor squashed is rolled back when closed; the intended
// use is
//
//	session := index.StartUndoSession(true)
//	defer session.Close()
//	...
//	session.Push()
type Session[V any] struct {
	u     *UndoIndex[V]
	apply bool
}

// StartUndoSession records a checkpoint of the container state and
// returns its handle. A disabled session is inert.
func (u *UndoIndex[V]) StartUndoSession(enabled bool) *Session[V] {
	if enabled {
		u.addSession()
	}
	return &Session[V]{u: u, apply: enabled}
}

func (u *UndoIndex[V]) addSession() {
	u.undoStack = append(u.undoStack, undoState{
		oldValuesEnd:     u.oldHead(),
		removedValuesEnd: u.removedHead(),
		oldNextID:        u.NextID(),
		ctime:            u.bumpMonotonic(),
	})
	u.setRevision(u.Revision() + 1)
}

// Undo rolls the session back now.
func (s *Session[V]) Undo() {
	if s.apply {
		s.u.Undo()
	}
	s.apply = false
}

// Push retains the session's changes; they stay undoable through the
// container until committed.
func (s *Session[V]) Push() {
	s.apply = false
}

// Squash merges the session into the one beneath it.
func (s *Session[V]) Squash() {
	if s.apply {
		s.u.Squash()
	}
	s.apply = false
}

// Close rolls the session back unless it was pushed or squashed.
func (s *Session[V]) Close() {
	if s.apply {
		s.u.Undo()
	}
	s.apply = false
}

// Undo resets the container to the state at the top of the undo stack.
// Surviving values keep their node offsets and their decoded *V
// identity.
func (u *UndoIndex[V]) Undo() {
	if len(u.undoStack) == 0 {
		return
	}
	info := u.undoStack[len(u.undoStack)-1]
	obs := observerFor(u.instanceID)

	// Drop everything created since the session began.
	if u.primaryByID {
		tree := u.set.Index(0)
		var drop []segment.Offset
		for n := tree.LowerBound(func(o segment.Offset) int {
			return compareInt64(info.oldNextID, u.cfg.GetID(u.value(o)))
		}); n != 0; n = tree.Next(n) {
			drop = append(drop, n)
		}
		for _, n := range drop {
			if obs != nil {
				obs.OnUndoRemoveValue(u.instanceID, u.DatabaseID(), u.value(n))
			}
			u.set.Erase(0, n)
			u.disposeNode(n)
		}
	} else {
		var drop []segment.Offset
		for c := u.created.LowerBound(func(o segment.Offset) int {
			return compareInt64(info.oldNextID, u.createdID(o))
		}); c != 0; c = u.created.Next(c) {
			drop = append(drop, c)
		}
		for _, c := range drop {
			cur := u.createdCurrent(c)
			if !u.isRemoved(cur) {
				if obs != nil {
					obs.OnUndoRemoveValue(u.instanceID, u.DatabaseID(), u.value(cur))
				}
				u.set.Erase(0, cur)
				u.disposeNode(cur)
			}
			u.created.Erase(c)
			u.disposeCreated(c)
		}
	}

	// Restore modified values. A saved mtime at or above the session's
	// ctime can only arise from a squash and means an older entry of the
	// merged session already covers this node.
	start := 0
	if u.primaryByID {
		start = 1
	}
	o := u.oldHead()
	for o != 0 && o != info.oldValuesEnd {
		next := u.oldNext(o)
		if m := u.oldMtime(o); m < info.ctime {
			cur := u.oldCurrent(o)
			copy(u.valueBytes(cur), u.oldValueBytes(o))
			u.reloadValue(cur)
			u.setNodeMtime(cur, m)
			if !u.isRemoved(cur) {
				// Transient duplicates are resolved once the matching
				// removed values are re-inserted below.
				u.set.PostModify(start, cur, false)
			}
		}
		u.disposeOld(o)
		o = next
	}
	u.setOldHead(o)

	// Re-insert removed values.
	r := u.removedHead()
	for r != 0 && r != info.removedValuesEnd {
		next := u.removedNext(r)
		v := u.value(r)
		if u.cfg.GetID(v) < info.oldNextID {
			// The flag shares the balance field and is overwritten by the
			// tree algorithms on insertion anyway.
			u.clearRemovedFlag(r)
			u.set.Insert(0, r)
			if obs != nil {
				obs.OnUndoAddValue(u.instanceID, u.DatabaseID(), v)
			}
			if !u.primaryByID && u.cfg.GetID(v) >= u.undoStack[0].oldNextID {
				_ = u.insertCreatedValue(r, u.cfg.GetID(v))
			}
		} else {
			u.disposeNode(r)
		}
		r = next
	}
	u.setRemovedHead(r)

	u.setNextID(info.oldNextID)
	u.undoStack = u.undoStack[:len(u.undoStack)-1]
	u.setRevision(u.Revision() - 1)
}

// UndoAll rolls back every open session.
func (u *UndoIndex[V]) UndoAll() {
	for len(u.undoStack) > 0 {
		u.Undo()
	}
}

// Squash merges the innermost session into the one beneath it,
// compressing away records the combined session does not need.
func (u *UndoIndex[V]) Squash() {
	if len(u.undoStack) >= 2 {
		u.compress(&u.undoStack[len(u.undoStack)-2])
	}
	u.squashFast()
}

func (u *UndoIndex[V]) squashFast() {
	if len(u.undoStack) == 0 {
		return
	}
	if len(u.undoStack) == 1 {
		u.disposeUndo()
	}
	u.undoStack = u.undoStack[:len(u.undoStack)-1]
	u.setRevision(u.Revision() - 1)
}

// compressLastUndoSession drops records of the innermost session that
// undoing it would not need. Compressing never changes the logical state
// of the container.
func (u *UndoIndex[V]) compressLastUndoSession() {
	if len(u.undoStack) == 0 {
		return
	}
	u.compress(&u.undoStack[len(u.undoStack)-1])
}

// compress removes entries added by the innermost session that become
// redundant once that session is viewed as part of the session described
// by bound: snapshots the bound session already covers, snapshots of
// since-removed nodes (their value moves into the removed node so a
// later undo restores it), and removed values created within the
// combined window.
func (u *UndoIndex[V]) compress(bound *undoState) {
	top := &u.undoStack[len(u.undoStack)-1]

	var prev segment.Offset
	o := u.oldHead()
	for o != 0 && o != top.oldValuesEnd {
		next := u.oldNext(o)
		drop := false
		if u.oldMtime(o) >= bound.ctime {
			drop = true
		} else if cur := u.oldCurrent(o); u.isRemoved(cur) {
			copy(u.valueBytes(cur), u.oldValueBytes(o))
			u.reloadValue(cur)
			u.setNodeMtime(cur, u.oldMtime(o))
			drop = true
		}
		if drop {
			if prev == 0 {
				u.setOldHead(next)
			} else {
				u.setOldNext(prev, next)
			}
			u.disposeOld(o)
		} else {
			prev = o
		}
		o = next
	}

	prev = 0
	r := u.removedHead()
	for r != 0 && r != top.removedValuesEnd {
		next := u.removedNext(r)
		if u.cfg.GetID(u.value(r)) >= bound.oldNextID {
			if prev == 0 {
				u.setRemovedHead(next)
			} else {
				u.setRemovedNext(prev, next)
			}
			u.disposeNode(r)
		} else {
			prev = r
		}
		r = next
	}
}

// Commit discards the undo history of every session with a revision at
// or below the given value. The main index is never altered.
func (u *UndoIndex[V]) Commit(revision uint64) {
	if revision >= u.Revision() {
		u.disposeUndo()
		u.undoStack = u.undoStack[:0]
		return
	}
	keep := int(u.Revision() - revision)
	if keep >= len(u.undoStack) {
		return
	}
	keepFrom := len(u.undoStack) - keep
	surviving := u.undoStack[keepFrom]

	if !u.primaryByID {
		var drop []segment.Offset
		for c := u.created.Begin(); c != 0 && u.createdID(c) < surviving.oldNextID; c = u.created.Next(c) {
			drop = append(drop, c)
		}
		for _, c := range drop {
			u.created.Erase(c)
			u.disposeCreated(c)
		}
	}

	u.disposeTail(surviving.oldValuesEnd, surviving.removedValuesEnd)
	u.undoStack = u.undoStack[keepFrom:]
}

// disposeTail releases the side-list entries of dropped sessions. Those
// entries sit strictly behind the oldest surviving session's markers;
// the marker records themselves stay linked, since surviving sessions
// still reference them, and are reclaimed by a later commit.
func (u *UndoIndex[V]) disposeTail(oldMarker, removedMarker segment.Offset) {
	if oldMarker != 0 {
		o := u.oldNext(oldMarker)
		u.setOldNext(oldMarker, 0)
		for o != 0 {
			next := u.oldNext(o)
			u.disposeOld(o)
			o = next
		}
	}
	if removedMarker != 0 {
		r := u.removedNext(removedMarker)
		u.setRemovedNext(removedMarker, 0)
		for r != 0 {
			next := u.removedNext(r)
			u.disposeNode(r)
			r = next
		}
	}
}

// disposeUndo releases all side-list entries and created-value records.
func (u *UndoIndex[V]) disposeUndo() {
	o := u.oldHead()
	for o != 0 {
		next := u.oldNext(o)
		u.disposeOld(o)
		o = next
	}
	u.setOldHead(0)

	r := u.removedHead()
	for r != 0 {
		next := u.removedNext(r)
		u.disposeNode(r)
		r = next
	}
	u.setRemovedHead(0)

	var drop []segment.Offset
	for c := u.created.Begin(); c != 0; c = u.created.Next(c) {
		drop = append(drop, c)
	}
	for _, c := range drop {
		u.created.Erase(c)
		u.disposeCreated(c)
	}
}

// Delta lists the changes of the innermost session: values created,
// snapshots of values modified, and values removed since it began.
type Delta[V any] struct {
	New     []*V
	Old     []V
	Removed []*V
}

// LastUndoSession returns the delta of the innermost session. The
// session is compressed first, so each modified value appears once.
func (u *UndoIndex[V]) LastUndoSession() Delta[V] {
	var delta Delta[V]
	if len(u.undoStack) == 0 {
		return delta
	}
	u.compressLastUndoSession()
	info := &u.undoStack[len(u.undoStack)-1]

	if u.primaryByID {
		tree := u.set.Index(0)
		for n := tree.LowerBound(func(o segment.Offset) int {
			return compareInt64(info.oldNextID, u.cfg.GetID(u.value(o)))
		}); n != 0; n = tree.Next(n) {
			delta.New = append(delta.New, u.value(n))
		}
	} else {
		for c := u.created.LowerBound(func(o segment.Offset) int {
			return compareInt64(info.oldNextID, u.createdID(o))
		}); c != 0; c = u.created.Next(c) {
			delta.New = append(delta.New, u.value(u.createdCurrent(c)))
		}
	}

	for o := u.oldHead(); o != 0 && o != info.oldValuesEnd; o = u.oldNext(o) {
		var saved V
		if err := u.codec.Load(u.oldValueBytes(o), &saved); err == nil {
			delta.Old = append(delta.Old, saved)
		}
	}

	for r := u.removedHead(); r != 0 && r != info.removedValuesEnd; r = u.removedNext(r) {
		delta.Removed = append(delta.Removed, u.value(r))
	}
	return delta
}

// RemovedNodesTracker defers the disposal of removed nodes so callers
// can still test removal until the tracker is closed. A tracker is
// invalidated by StartUndoSession, Undo, Squash, and Commit.
type RemovedNodesTracker[V any] struct {
	u       *UndoIndex[V]
	tracked []segment.Offset
}

// TrackRemoved opens a removed-nodes tracker.
func (u *UndoIndex[V]) TrackRemoved() *RemovedNodesTracker[V] {
	return &RemovedNodesTracker[V]{u: u}
}

// Remove must be used in place of UndoIndex.Remove while the tracker is
// open; a node the container would destroy immediately is parked on the
// tracker instead.
func (t *RemovedNodesTracker[V]) Remove(v *V) error {
	u := t.u
	n, err := u.node(v)
	if err != nil {
		return err
	}
	u.set.Erase(0, n)
	if u.onRemove(n, v) {
		u.setRemovedFlag(n)
		t.tracked = append(t.tracked, n)
	}
	return nil
}

// IsRemoved reports whether the value has been removed.
func (t *RemovedNodesTracker[V]) IsRemoved(v *V) bool {
	n, err := t.u.node(v)
	if err != nil {
		return false
	}
	return t.u.isRemoved(n)
}

// Close destroys the nodes parked on the tracker.
func (t *RemovedNodesTracker[V]) Close() {
	for _, n := range t.tracked {
		t.u.disposeNode(n)
	}
	t.tracked = nil
}
