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

	"github.com/Fantom-foundation/Chainbase/backend/avltree"
	"github.com/Fantom-foundation/Chainbase/common"
	"github.com/Fantom-foundation/Chainbase/segment"
)

// Index is the read view of one configured index. Lookups take a probe
// value of the container's value type with the index's key fields set;
// only those fields are consulted.
type Index[V any] struct {
	u    *UndoIndex[V]
	pos  int
	name string
	tree *avltree.Tree
}

// GetIndex returns the read view of the index at the given position.
func (u *UndoIndex[V]) GetIndex(pos int) *Index[V] {
	return &Index[V]{u: u, pos: pos, name: u.cfg.Indexes[pos].Name, tree: u.set.Index(pos)}
}

// GetIndexByName returns the read view of the named index.
func (u *UndoIndex[V]) GetIndexByName(name string) (*Index[V], error) {
	for i, def := range u.cfg.Indexes {
		if def.Name == name {
			return u.GetIndex(i), nil
		}
	}
	return nil, fmt.Errorf("%w: no index named %q", common.ErrNotFound, name)
}

// Name returns the index name.
func (ix *Index[V]) Name() string { return ix.name }

// Position returns the index position within the container.
func (ix *Index[V]) Position() int { return ix.pos }

// InstanceID returns the process instance the owning container reports
// events under.
func (ix *Index[V]) InstanceID() uint64 { return ix.u.instanceID }

// DatabaseID returns the logical database of the owning container.
func (ix *Index[V]) DatabaseID() uint64 { return ix.u.DatabaseID() }

// FirstNextID returns the id-generator base of the owning container.
func (ix *Index[V]) FirstNextID() int64 { return ix.u.FirstNextID() }

// Size returns the number of values in this index.
func (ix *Index[V]) Size() int64 { return ix.tree.Size() }

func (ix *Index[V]) probe(key *V) avltree.Probe {
	cmp := ix.u.compare[ix.pos]
	return func(n segment.Offset) int {
		return cmp(key, ix.u.value(n))
	}
}

// Find returns the value matching the probe's key, or nil. A registered
// cache-enabled observer may serve the lookup from its cache.
func (ix *Index[V]) Find(key V) *V {
	u := ix.u
	obs := observerFor(u.instanceID)
	if obs != nil && obs.CacheEnabled() {
		if obj, cached := obs.FindInCache(u.instanceID, u.DatabaseID(), ix.name, key); cached {
			obs.OnFindEnd(u.instanceID, u.DatabaseID(), ix.name, key, obj)
			if v, ok := obj.(*V); ok {
				return v
			}
			return nil
		}
	}
	if obs != nil {
		obs.OnFindBegin(u.instanceID, u.DatabaseID(), ix.name, key)
	}
	n, ok := ix.tree.Find(ix.probe(&key))
	var res *V
	if ok {
		res = u.value(n)
	}
	if obs != nil {
		if res != nil {
			obs.OnFindEnd(u.instanceID, u.DatabaseID(), ix.name, key, res)
		} else {
			obs.OnFindEnd(u.instanceID, u.DatabaseID(), ix.name, key, nil)
		}
	}
	return res
}

// Get returns the value matching the probe's key or fails with
// ErrNotFound.
func (ix *Index[V]) Get(key V) (*V, error) {
	if v := ix.Find(key); v != nil {
		return v, nil
	}
	return nil, fmt.Errorf("%w: index %q", common.ErrNotFound, ix.name)
}

// LowerBound returns an iterator at the first value whose key does not
// order before the probe's key.
func (ix *Index[V]) LowerBound(key V) *Iterator[V] {
	u := ix.u
	obs := observerFor(u.instanceID)
	if obs != nil {
		obs.OnLowerBoundBegin(u.instanceID, u.DatabaseID(), ix.name, key)
	}
	it := &Iterator[V]{u: u, tree: ix.tree, n: ix.tree.LowerBound(ix.probe(&key))}
	if obs != nil {
		obs.OnLowerBoundEnd(u.instanceID, u.DatabaseID(), ix.name, key, it.valueOrNil())
	}
	return it
}

// UpperBound returns an iterator at the first value whose key orders
// strictly after the probe's key.
func (ix *Index[V]) UpperBound(key V) *Iterator[V] {
	u := ix.u
	obs := observerFor(u.instanceID)
	if obs != nil {
		obs.OnUpperBoundBegin(u.instanceID, u.DatabaseID(), ix.name, key)
	}
	it := &Iterator[V]{u: u, tree: ix.tree, n: ix.tree.UpperBound(ix.probe(&key))}
	if obs != nil {
		obs.OnUpperBoundEnd(u.instanceID, u.DatabaseID(), ix.name, key, it.valueOrNil())
	}
	return it
}

// EqualRange returns the iterator pair bracketing the values equal to
// the probe's key; since all indexes are unique the range holds at most
// one value.
func (ix *Index[V]) EqualRange(key V) (*Iterator[V], *Iterator[V]) {
	u := ix.u
	obs := observerFor(u.instanceID)
	if obs != nil {
		obs.OnEqualRangeBegin(u.instanceID, u.DatabaseID(), ix.name, key)
	}
	first := &Iterator[V]{u: u, tree: ix.tree, n: ix.tree.LowerBound(ix.probe(&key))}
	last := &Iterator[V]{u: u, tree: ix.tree, n: ix.tree.UpperBound(ix.probe(&key))}
	if obs != nil {
		obs.OnEqualRangeEnd(u.instanceID, u.DatabaseID(), ix.name, key)
	}
	return first, last
}

// Begin returns an iterator at the smallest value of this index.
func (ix *Index[V]) Begin() *Iterator[V] {
	return &Iterator[V]{u: ix.u, tree: ix.tree, n: ix.tree.Begin()}
}

// ForEach visits every value of this index in order.
func (ix *Index[V]) ForEach(visit func(*V)) {
	ix.tree.ForEach(func(n segment.Offset) {
		visit(ix.u.value(n))
	})
}

// Find looks up a value through the primary index.
func (u *UndoIndex[V]) Find(key V) *V {
	return u.GetIndex(0).Find(key)
}

// Get looks up a value through the primary index or fails with
// ErrNotFound.
func (u *UndoIndex[V]) Get(key V) (*V, error) {
	return u.GetIndex(0).Get(key)
}

// LowerBound searches the primary index.
func (u *UndoIndex[V]) LowerBound(key V) *Iterator[V] {
	return u.GetIndex(0).LowerBound(key)
}

// UpperBound searches the primary index.
func (u *UndoIndex[V]) UpperBound(key V) *Iterator[V] {
	return u.GetIndex(0).UpperBound(key)
}

// Iterator walks one index in order. Iterators are invalidated by any
// mutation of the container.
type Iterator[V any] struct {
	u    *UndoIndex[V]
	tree *avltree.Tree
	n    segment.Offset
}

// Valid reports whether the iterator references a value.
func (it *Iterator[V]) Valid() bool {
	return it.n != 0
}

// Value returns the referenced value; nil past the end.
func (it *Iterator[V]) Value() *V {
	return it.valueOrNil()
}

func (it *Iterator[V]) valueOrNil() *V {
	if it.n == 0 {
		return nil
	}
	return it.u.value(it.n)
}

// Next advances to the in-order successor.
func (it *Iterator[V]) Next() {
	if it.n != 0 {
		it.n = it.tree.Next(it.n)
	}
}

// Prev steps back to the in-order predecessor.
func (it *Iterator[V]) Prev() {
	if it.n != 0 {
		it.n = it.tree.Prev(it.n)
	}
}

// Equal reports whether both iterators reference the same position.
func (it *Iterator[V]) Equal(other *Iterator[V]) bool {
	return it.n == other.n
}

// Project maps an iterator of one index to the iterator referencing the
// same value in the target index. An exhausted iterator projects to an
// exhausted iterator.
func Project[V any](it *Iterator[V], target *Index[V]) *Iterator[V] {
	if !it.Valid() {
		return &Iterator[V]{u: target.u, tree: target.tree, n: 0}
	}
	return &Iterator[V]{u: target.u, tree: target.tree, n: it.n}
}
