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
	"fmt"

	"github.com/Fantom-foundation/Chainbase/backend/hook"
	"github.com/Fantom-foundation/Chainbase/common"
	"github.com/Fantom-foundation/Chainbase/segment"
)

func (u *UndoIndex[V]) withoutUndoInitialized() bool {
	return u.CreateWithoutUndoNextID() != -1
}

func (u *UndoIndex[V]) initNode(n segment.Offset) {
	for i := 0; i < u.numIndexes; i++ {
		hook.Clear(u.seg.Data(), int64(n)+int64(i)*hook.Size)
	}
	u.setNodeMtime(n, 0)
}

// construct allocates and initializes a node holding a new value with the
// given id.
func (u *UndoIndex[V]) construct(id int64, ctor func(*V)) (segment.Offset, *V, error) {
	n, err := u.alloc.Allocate(1)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to allocate node: %w", err)
	}
	u.initNode(n)
	v := new(V)
	u.cfg.SetID(v, id)
	ctor(v)
	// the id is container-managed; a constructor cannot override it
	u.cfg.SetID(v, id)
	if err := u.writeValue(n, v); err != nil {
		u.alloc.Deallocate(n, 1)
		return 0, nil, err
	}
	u.live[n] = v
	u.refs[v] = n
	return n, v, nil
}

func (u *UndoIndex[V]) discard(n segment.Offset) {
	u.dropView(n)
	u.alloc.Deallocate(n, 1)
}

func (u *UndoIndex[V]) disposeNode(n segment.Offset) {
	u.dropView(n)
	u.alloc.Deallocate(n, 1)
}

func (u *UndoIndex[V]) disposeOld(o segment.Offset) {
	u.oldAlloc.Deallocate(o, 1)
}

func (u *UndoIndex[V]) disposeCreated(c segment.Offset) {
	u.createdAlloc.Deallocate(c, 1)
}

// Emplace constructs a new value under the next id of the regular
// generator and links it into all indexes. On any failure the container
// is left unchanged.
func (u *UndoIndex[V]) Emplace(ctor func(*V)) (*V, error) {
	newID := u.NextID()
	obs := observerFor(u.instanceID)
	if obs != nil {
		obs.OnCreateBegin(u.instanceID, u.DatabaseID(), newID)
	}
	if newID >= u.FirstNextID()+MaxNextID {
		return nil, fmt.Errorf("%w: id generator exhausted", common.ErrLogic)
	}
	n, v, err := u.construct(newID, ctor)
	if err != nil {
		return nil, err
	}
	// While the without-undo generator is uninitialized, freshly
	// generated ids are the largest the primary index has ever seen and
	// can be appended without a descent. Bootstrapped ids may break that
	// assumption, hence the check against the current tail.
	fastAppend := !u.withoutUndoInitialized() && u.primaryByID
	if fastAppend {
		if last := u.set.Index(0).Last(); last != 0 && u.cfg.GetID(u.value(last)) >= newID {
			fastAppend = false
		}
	}
	if fastAppend {
		if _, ok := u.set.Insert(1, n); !ok {
			u.discard(n)
			if obs != nil {
				obs.OnCreateEnd(u.instanceID, u.DatabaseID(), newID, nil)
			}
			return nil, fmt.Errorf("%w: emplace: could not insert object with id %d, database_id %d", common.ErrUniquenessViolation, newID, u.DatabaseID())
		}
		u.set.PushBackPrimary(n)
	} else {
		if _, ok := u.set.Insert(0, n); !ok {
			u.discard(n)
			if obs != nil {
				obs.OnCreateEnd(u.instanceID, u.DatabaseID(), newID, nil)
			}
			return nil, fmt.Errorf("%w: emplace: could not insert object with id %d, database_id %d", common.ErrUniquenessViolation, newID, u.DatabaseID())
		}
	}
	if err := u.onCreate(n, newID); err != nil {
		u.set.Erase(0, n)
		u.discard(n)
		return nil, err
	}
	u.setNextID(newID + 1)
	if obs != nil {
		obs.OnCreateEnd(u.instanceID, u.DatabaseID(), newID, v)
	}
	return v, nil
}

// EmplaceWithID constructs a value under a caller-chosen id. This is the
// bootstrap path; it is permitted only while the regular generator has
// never assigned an id.
func (u *UndoIndex[V]) EmplaceWithID(id int64, ctor func(*V)) (*V, error) {
	if u.NextID() != 0 {
		return nil, fmt.Errorf("%w: emplace_with_id can only be used while next_id is zero", common.ErrLogic)
	}
	n, v, err := u.construct(id, ctor)
	if err != nil {
		return nil, err
	}
	if _, ok := u.set.Insert(0, n); !ok {
		u.discard(n)
		return nil, fmt.Errorf("%w: emplace_with_id: could not insert object with id %d", common.ErrUniquenessViolation, id)
	}
	if err := u.onCreate(n, id); err != nil {
		u.set.Erase(0, n)
		u.discard(n)
		return nil, err
	}
	return v, nil
}

// EmplaceWithoutUndo constructs a value under the second, disjoint id
// generator. The created object carries no session bookkeeping and is
// indistinguishable from one loaded outside any session; it cannot be
// rolled back until it is modified or removed. Permitted only once the
// generator has been initialized, except that with no open session the
// call degrades to a regular Emplace.
func (u *UndoIndex[V]) EmplaceWithoutUndo(ctor func(*V)) (*V, error) {
	cwu := u.CreateWithoutUndoNextID()
	if cwu == -1 {
		if len(u.undoStack) == 0 {
			return u.Emplace(ctor)
		}
		return nil, fmt.Errorf("%w: can not emplace_without_undo object directly while create_without_undo_next_id is not initialized", common.ErrLogic)
	}
	if cwu+1 > u.FirstNextID()+MaxCreateWithoutUndoNextID {
		return nil, fmt.Errorf("%w: create_without_undo_next_id overflow", common.ErrLogic)
	}
	n, v, err := u.construct(cwu, ctor)
	if err != nil {
		return nil, err
	}
	if _, ok := u.set.Insert(0, n); !ok {
		u.discard(n)
		return nil, fmt.Errorf("%w: emplace_without_undo: could not insert object with id %d", common.ErrUniquenessViolation, cwu)
	}
	u.setCwuNextID(cwu + 1)
	return v, nil
}

// onCreate records a creation that happened inside an open session.
func (u *UndoIndex[V]) onCreate(n segment.Offset, id int64) error {
	if len(u.undoStack) == 0 {
		return nil
	}
	u.setNodeMtime(n, u.monotonic())
	return u.insertCreatedValue(n, id)
}

// insertCreatedValue maintains the id-ordered view of in-session
// creations; the primary index serves that role itself when keyed by id.
func (u *UndoIndex[V]) insertCreatedValue(n segment.Offset, id int64) error {
	if u.primaryByID {
		return nil
	}
	c, err := u.createdAlloc.Allocate(1)
	if err != nil {
		return err
	}
	hook.Clear(u.seg.Data(), int64(c))
	putInt64(u.seg.Bytes(c+createdRecID, 8), id)
	putInt64(u.seg.Bytes(c+createdRecCurrent, 8), int64(n))
	if _, ok := u.created.InsertUnique(c); !ok {
		u.createdAlloc.Deallocate(c, 1)
		return fmt.Errorf("%w: on_create: could not insert created-value record for id %d", common.ErrLogic, id)
	}
	return nil
}

// Modify snapshots the value if the innermost session has not seen it
// yet, applies the mutator, and re-seats the node in every index. When
// the new state conflicts in a unique index the modification is rolled
// back and the call fails. The value's id must not change; an id written
// by the mutator is reverted.
func (u *UndoIndex[V]) Modify(v *V, mutate func(*V)) error {
	n, err := u.node(v)
	if err != nil {
		return err
	}
	obs := observerFor(u.instanceID)
	if obs != nil {
		obs.OnModifyBegin(u.instanceID, u.DatabaseID(), v)
	}
	backup, err := u.onModify(n)
	if err != nil {
		return err
	}
	oldID := u.cfg.GetID(v)
	mutate(v)
	u.cfg.SetID(v, oldID)
	u.setNodeMtime(n, u.bumpMonotonic())

	start := 0
	if u.primaryByID {
		start = 1
	}
	success := false
	if err := u.writeValue(n, v); err == nil {
		success = u.set.PostModify(start, n, true)
	}
	if !success {
		if backup != 0 {
			copy(u.valueBytes(n), u.oldValueBytes(backup))
			u.reloadValue(n)
			u.setNodeMtime(n, u.oldMtime(backup))
			u.set.PostModify(start, n, true)
			u.setOldHead(u.oldNext(backup))
			u.disposeOld(backup)
		} else {
			_ = u.Remove(v)
		}
		if obs != nil {
			obs.OnModifyEnd(u.instanceID, u.DatabaseID(), v, false)
		}
		return fmt.Errorf("%w: could not modify object", common.ErrUniquenessViolation)
	}
	if obs != nil {
		obs.OnModifyEnd(u.instanceID, u.DatabaseID(), v, true)
	}
	return nil
}

// onModify snapshots the pre-modification state into the old-values list
// when the innermost session has not captured this node yet. Returns the
// offset of the snapshot, or 0 when none was needed.
func (u *UndoIndex[V]) onModify(n segment.Offset) (segment.Offset, error) {
	if len(u.undoStack) == 0 {
		return 0, nil
	}
	top := &u.undoStack[len(u.undoStack)-1]
	if u.nodeMtime(n) >= top.ctime {
		return 0, nil
	}
	o, err := u.oldAlloc.Allocate(1)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate old-value record: %w", err)
	}
	hook.Clear(u.seg.Data(), int64(o))
	putUint64(u.seg.Bytes(o+oldRecMtime, 8), u.nodeMtime(n))
	putInt64(u.seg.Bytes(o+oldRecCurrent, 8), int64(n))
	copy(u.oldValueBytes(o), u.valueBytes(n))
	u.setOldNext(o, u.oldHead())
	u.setOldHead(o)
	return o, nil
}

// Remove takes the value out of all indexes. Inside a session the node
// is parked on the removed list for a later undo, except that a value
// created within the innermost session is destroyed eagerly; both steps
// of a create-then-remove pair vanish.
func (u *UndoIndex[V]) Remove(v *V) error {
	n, err := u.node(v)
	if err != nil {
		return err
	}
	obs := observerFor(u.instanceID)
	if obs != nil {
		obs.OnRemoveBegin(u.instanceID, u.DatabaseID(), v)
	}
	u.set.Erase(0, n)
	if u.onRemove(n, v) {
		u.disposeNode(n)
	}
	if obs != nil {
		obs.OnRemoveEnd(u.instanceID, u.DatabaseID())
	}
	return nil
}

// onRemove reports whether the unlinked node should be destroyed
// immediately.
func (u *UndoIndex[V]) onRemove(n segment.Offset, v *V) bool {
	if len(u.undoStack) == 0 {
		return true
	}
	if !u.primaryByID {
		id := u.cfg.GetID(v)
		if c, ok := u.created.Find(func(o segment.Offset) int {
			return compareInt64(id, u.createdID(o))
		}); ok {
			u.created.Erase(c)
			u.disposeCreated(c)
		}
	}
	top := &u.undoStack[len(u.undoStack)-1]
	if u.cfg.GetID(v) >= top.oldNextID {
		return true
	}
	u.setRemovedFlag(n)
	u.setRemovedNext(n, u.removedHead())
	u.setRemovedHead(n)
	return false
}

// RemoveWithoutUndo destroys a value immediately, bypassing all session
// bookkeeping. Only mature objects, which no open session tracks, may be
// removed this way.
func (u *UndoIndex[V]) RemoveWithoutUndo(v *V) error {
	if !u.IsMatureObject(v) {
		return fmt.Errorf("%w: can not remove object directly while it's in the undo_stack", common.ErrLogic)
	}
	n, err := u.node(v)
	if err != nil {
		return err
	}
	u.set.Erase(0, n)
	u.disposeNode(n)
	return nil
}

// RemoveObject removes the value with the given id. Available only on
// containers whose primary index is keyed by id.
func (u *UndoIndex[V]) RemoveObject(id int64) error {
	if !u.primaryByID {
		return fmt.Errorf("%w: remove_object can only be used when the first index is id", common.ErrLogic)
	}
	n, ok := u.set.Index(0).Find(func(o segment.Offset) int {
		return compareInt64(id, u.cfg.GetID(u.value(o)))
	})
	if !ok {
		return fmt.Errorf("%w: no object with id %d", common.ErrNotFound, id)
	}
	return u.Remove(u.value(n))
}
