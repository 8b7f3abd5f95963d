// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package database provides the facade owning the undo indexes of one
// mapped segment. It opens the segment file, registers it with the
// process-wide segment registry, and multiplexes session operations
// across all owned indexes so that the database rolls back and commits
// as a unit.
package database

import (
	"fmt"

	"github.com/Fantom-foundation/Chainbase/common"
	"github.com/Fantom-foundation/Chainbase/segment"
	"github.com/Fantom-foundation/Chainbase/undoindex"
)

// OpenFlag selects the access mode of a database.
type OpenFlag int

const (
	ReadOnly OpenFlag = iota
	ReadWrite
)

// Options name the database stored in a fresh segment and the registry
// identifiers of its segments.
type Options struct {
	DatabaseID               uint64
	InstanceID               uint64
	UniqueSegmentManagerID   uint16
	WritableSegmentManagerID uint16
}

// index is the type-erased view the facade holds of each owned undo
// index.
type index interface {
	Undo()
	UndoAll()
	Squash()
	Commit(revision uint64)
	SetRevision(revision uint64) error
	Revision() uint64
	HasUndoSession() bool
	Size() int64
}

// registered pairs an index with its configured name for reporting.
type registered struct {
	name string
	idx  index
}

// sessionHandle is the per-index part of a database session.
type sessionHandle interface {
	Undo()
	Push()
	Squash()
	Close()
}

// Database owns the undo indexes of one mapped segment file.
type Database struct {
	file         *segment.File
	readOnly     bool
	readOnlyMode bool
	closed       bool
	indexes      []registered
	starters     []func() sessionHandle
}

// Open opens or creates the database segment at path with the given
// total size, registers it under the identifiers in opts, and returns
// the facade. A fresh segment receives the database-configure record
// from opts; for an existing segment opts identifiers are used for
// registration only.
func Open(path string, flags OpenFlag, size int64, allowDirty bool, opts Options) (*Database, error) {
	file, err := segment.OpenFile(path, flags == ReadWrite, size, allowDirty)
	if err != nil {
		return nil, err
	}
	cfg := file.GetConfigure()
	if cfg.UniqueSegmentManagerID == 0 {
		if flags != ReadWrite {
			_ = file.Close()
			return nil, fmt.Errorf("%w: segment carries no database-configure record", common.ErrCorrupted)
		}
		cfg = segment.Configure{
			DatabaseID:               opts.DatabaseID,
			InstanceID:               opts.InstanceID,
			UniqueSegmentManagerID:   opts.UniqueSegmentManagerID,
			WritableSegmentManagerID: opts.WritableSegmentManagerID,
		}
		if err := file.SetConfigure(cfg); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	if err := segment.Register(cfg.UniqueSegmentManagerID, file.Manager); err != nil {
		_ = file.Close()
		return nil, err
	}
	return &Database{
		file:         file,
		readOnly:     flags == ReadOnly,
		readOnlyMode: flags == ReadOnly,
	}, nil
}

// AddIndex opens an undo index on the database's segment and attaches it
// to the facade's session multiplexing. All indexes must be added before
// sessions are started, in the same order on every run.
func AddIndex[V any](db *Database, cfg undoindex.Config[V]) (*undoindex.UndoIndex[V], error) {
	u, err := undoindex.Open(db.file.Manager, cfg)
	if err != nil {
		return nil, err
	}
	u.SetDatabaseID(db.file.GetConfigure().DatabaseID)
	u.SetInstanceID(db.file.GetConfigure().InstanceID)
	db.indexes = append(db.indexes, registered{name: cfg.Name, idx: u})
	db.starters = append(db.starters, func() sessionHandle {
		return u.StartUndoSession(true)
	})
	return u, nil
}

// Manager exposes the segment manager of the database.
func (db *Database) Manager() *segment.Manager {
	return db.file.Manager
}

// Configure returns the database-configure record.
func (db *Database) Configure() segment.Configure {
	return db.file.GetConfigure()
}

// FreeMemory reports the never-allocated bytes left in the segment.
func (db *Database) FreeMemory() int64 {
	return db.file.FreeMemory()
}

func (db *Database) failIfReadOnly(op string) error {
	if db.readOnlyMode {
		return fmt.Errorf("%w: %w: attempting to %s in read-only mode", common.ErrLogic, common.ErrReadOnly, op)
	}
	return nil
}

// SetReadOnlyMode blocks all mutating operations of the facade.
func (db *Database) SetReadOnlyMode() {
	db.readOnlyMode = true
}

// UnsetReadOnlyMode re-enables mutation; not available on a database
// opened read-only.
func (db *Database) UnsetReadOnlyMode() error {
	if db.readOnly {
		return fmt.Errorf("%w: attempting to unset read_only_mode while database was opened as read only", common.ErrLogic)
	}
	db.readOnlyMode = false
	return nil
}

// Undo rolls back the innermost session of every owned index.
func (db *Database) Undo() error {
	if err := db.failIfReadOnly("undo"); err != nil {
		return err
	}
	for _, item := range db.indexes {
		item.idx.Undo()
	}
	return nil
}

// UndoAll rolls back every open session of every owned index.
func (db *Database) UndoAll() error {
	if err := db.failIfReadOnly("undo_all"); err != nil {
		return err
	}
	for _, item := range db.indexes {
		item.idx.UndoAll()
	}
	return nil
}

// Squash merges the innermost session of every owned index into its
// parent.
func (db *Database) Squash() error {
	if err := db.failIfReadOnly("squash"); err != nil {
		return err
	}
	for _, item := range db.indexes {
		item.idx.Squash()
	}
	return nil
}

// Commit drops the undo history up to the given revision on every owned
// index.
func (db *Database) Commit(revision uint64) error {
	if err := db.failIfReadOnly("commit"); err != nil {
		return err
	}
	for _, item := range db.indexes {
		item.idx.Commit(revision)
	}
	return nil
}

// SetRevision aligns the revision of every owned index; only valid with
// no open sessions.
func (db *Database) SetRevision(revision uint64) error {
	if err := db.failIfReadOnly("set revision"); err != nil {
		return err
	}
	for _, item := range db.indexes {
		if err := item.idx.SetRevision(revision); err != nil {
			return err
		}
	}
	return nil
}

// Revision returns the revision of the database, or -1 when it owns no
// indexes.
func (db *Database) Revision() int64 {
	if len(db.indexes) == 0 {
		return -1
	}
	return int64(db.indexes[0].idx.Revision())
}

// HasUndoSession reports whether the owned indexes have an open session.
func (db *Database) HasUndoSession() bool {
	if len(db.indexes) == 0 {
		return false
	}
	return db.indexes[0].idx.HasUndoSession()
}

// Session spans one undo session over every index of a database.
type Session struct {
	subs []sessionHandle
}

// StartUndoSession opens a session on every owned index and returns the
// combined handle. A disabled session is inert.
func (db *Database) StartUndoSession(enabled bool) (*Session, error) {
	if err := db.failIfReadOnly("start_undo_session"); err != nil {
		return nil, err
	}
	res := &Session{}
	if enabled {
		for _, start := range db.starters {
			res.subs = append(res.subs, start())
		}
	}
	return res, nil
}

// Undo rolls the session back on every index now.
func (s *Session) Undo() {
	for _, sub := range s.subs {
		sub.Undo()
	}
	s.subs = nil
}

// Push retains the session on every index.
func (s *Session) Push() {
	for _, sub := range s.subs {
		sub.Push()
	}
	s.subs = nil
}

// Squash merges the session into its parent on every index.
func (s *Session) Squash() {
	for _, sub := range s.subs {
		sub.Squash()
	}
	s.subs = nil
}

// Close rolls the session back unless it was pushed or squashed.
func (s *Session) Close() {
	for _, sub := range s.subs {
		sub.Close()
	}
	s.subs = nil
}

// RowCount pairs an index name with its number of values.
type RowCount struct {
	Name  string
	Count int64
}

// RowCountPerIndex reports the value count of every owned index.
func (db *Database) RowCountPerIndex() []RowCount {
	res := make([]RowCount, 0, len(db.indexes))
	for _, item := range db.indexes {
		res = append(res, RowCount{Name: item.name, Count: item.idx.Size()})
	}
	return res
}

// Flush forces the mapped segment out to disk.
func (db *Database) Flush() error {
	return db.file.Flush()
}

// Close unregisters the segment and releases the mapping. Open undo
// sessions do not survive a close; callers commit first. Closing twice
// is a no-op.
func (db *Database) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	if id := db.file.GetConfigure().UniqueSegmentManagerID; id != 0 {
		segment.Unregister(id)
	}
	return db.file.Close()
}
