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

//go:generate mockgen -source events.go -destination observer_mocks.go -package undoindex

// Observer receives begin/end events for every public operation of the
// undo indexes registered under one instance id, identified by the
// owning instance and database on every call. Observers must not fail;
// the only feedback channel is the cached result of FindInCache.
//
// A cache-enabled observer may short-circuit Find by returning a
// previously seen object. Doing so must be indistinguishable from the
// direct lookup.
type Observer interface {
	// CacheEnabled reports whether FindInCache should be consulted.
	CacheEnabled() bool
	// FindInCache may serve a find from a cache. The first result is the
	// cached object or nil for a cached miss; the second reports whether
	// the cache answered at all.
	FindInCache(instanceID, databaseID uint64, index string, key any) (any, bool)

	OnFindBegin(instanceID, databaseID uint64, index string, key any)
	OnFindEnd(instanceID, databaseID uint64, index string, key any, obj any)
	OnLowerBoundBegin(instanceID, databaseID uint64, index string, key any)
	OnLowerBoundEnd(instanceID, databaseID uint64, index string, key any, obj any)
	OnUpperBoundBegin(instanceID, databaseID uint64, index string, key any)
	OnUpperBoundEnd(instanceID, databaseID uint64, index string, key any, obj any)
	OnEqualRangeBegin(instanceID, databaseID uint64, index string, key any)
	OnEqualRangeEnd(instanceID, databaseID uint64, index string, key any)

	OnCreateBegin(instanceID, databaseID uint64, id int64)
	OnCreateEnd(instanceID, databaseID uint64, id int64, obj any)
	OnModifyBegin(instanceID, databaseID uint64, obj any)
	OnModifyEnd(instanceID, databaseID uint64, obj any, success bool)
	OnRemoveBegin(instanceID, databaseID uint64, obj any)
	OnRemoveEnd(instanceID, databaseID uint64)

	// OnUndoAddValue reports a value re-appearing during undo.
	OnUndoAddValue(instanceID, databaseID uint64, obj any)
	// OnUndoRemoveValue reports a value disappearing during undo.
	OnUndoRemoveValue(instanceID, databaseID uint64, obj any)
}

// The observer registry is process-wide, keyed by instance id, and
// single-threaded like the rest of the library: it is populated during
// start-up and consulted afterwards. Its lifetime is the process.
var observers = map[uint64]Observer{}

// RegisterObserver binds an observer to an instance id, replacing a
// previous one.
func RegisterObserver(instanceID uint64, o Observer) {
	observers[instanceID] = o
}

// ClearObserver removes the observer of an instance id.
func ClearObserver(instanceID uint64) {
	delete(observers, instanceID)
}

func observerFor(instanceID uint64) Observer {
	return observers[instanceID]
}
