// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package database

import (
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Fantom-foundation/Chainbase/common"
	"github.com/Fantom-foundation/Chainbase/undoindex"
)

const testDBSize = 8 << 20

// account is a minimal test schema: primary by id, secondary by owner.
type account struct {
	ID      int64
	Owner   int64
	Balance int64
}

type accountCodec struct{}

func (accountCodec) EncodedSize() int { return 24 }

func (accountCodec) Store(trg []byte, a *account) error {
	binary.LittleEndian.PutUint64(trg, uint64(a.ID))
	binary.LittleEndian.PutUint64(trg[8:], uint64(a.Owner))
	binary.LittleEndian.PutUint64(trg[16:], uint64(a.Balance))
	return nil
}

func (accountCodec) Load(src []byte, a *account) error {
	a.ID = int64(binary.LittleEndian.Uint64(src))
	a.Owner = int64(binary.LittleEndian.Uint64(src[8:]))
	a.Balance = int64(binary.LittleEndian.Uint64(src[16:]))
	return nil
}

func accountConfig() undoindex.Config[account] {
	return undoindex.Config[account]{
		Name:  "accounts",
		Codec: accountCodec{},
		GetID: func(a *account) int64 { return a.ID },
		SetID: func(a *account, id int64) { a.ID = id },
		Indexes: []undoindex.IndexDef[account]{
			{Name: "byid"},
			{Name: "byowner", Compare: func(x, y *account) int {
				switch {
				case x.Owner < y.Owner:
					return -1
				case x.Owner > y.Owner:
					return 1
				default:
					return 0
				}
			}},
		},
	}
}

func balanceConfig() undoindex.Config[account] {
	cfg := accountConfig()
	cfg.Name = "balances"
	return cfg
}

func openTestDB(t *testing.T, path string, flags OpenFlag) *Database {
	t.Helper()
	db, err := Open(path, flags, testDBSize, false, Options{
		DatabaseID:               1,
		InstanceID:               1,
		UniqueSegmentManagerID:   11,
		WritableSegmentManagerID: 11,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDatabase_SessionSpansAllIndexes(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "db.seg"), ReadWrite)
	accounts, err := AddIndex(db, accountConfig())
	if err != nil {
		t.Fatalf("failed to add index: %v", err)
	}
	balances, err := AddIndex(db, balanceConfig())
	if err != nil {
		t.Fatalf("failed to add index: %v", err)
	}

	session, err := db.StartUndoSession(true)
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	if _, err := accounts.Emplace(func(a *account) { a.Owner = 1 }); err != nil {
		t.Fatalf("failed to emplace: %v", err)
	}
	if _, err := balances.Emplace(func(a *account) { a.Owner = 2 }); err != nil {
		t.Fatalf("failed to emplace: %v", err)
	}
	session.Undo()

	if got := accounts.Size(); got != 0 {
		t.Errorf("session undo missed the accounts index, size %d", got)
	}
	if got := balances.Size(); got != 0 {
		t.Errorf("session undo missed the balances index, size %d", got)
	}
}

func TestDatabase_PushedSessionSurvivesAndCommits(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "db.seg"), ReadWrite)
	accounts, err := AddIndex(db, accountConfig())
	if err != nil {
		t.Fatalf("failed to add index: %v", err)
	}

	session, err := db.StartUndoSession(true)
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	if _, err := accounts.Emplace(func(a *account) { a.Owner = 1 }); err != nil {
		t.Fatalf("failed to emplace: %v", err)
	}
	session.Push()

	if !db.HasUndoSession() {
		t.Fatalf("pushed session not reported")
	}
	if err := db.Commit(uint64(db.Revision())); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	if db.HasUndoSession() {
		t.Errorf("committed session still reported")
	}
	if got := accounts.Size(); got != 1 {
		t.Errorf("commit lost data, size %d", got)
	}
}

func TestDatabase_ReadOnlyModeBlocksMutation(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "db.seg"), ReadWrite)
	if _, err := AddIndex(db, accountConfig()); err != nil {
		t.Fatalf("failed to add index: %v", err)
	}

	db.SetReadOnlyMode()
	if _, err := db.StartUndoSession(true); !errors.Is(err, common.ErrReadOnly) {
		t.Errorf("start_undo_session not blocked, got %v", err)
	}
	if err := db.Undo(); !errors.Is(err, common.ErrReadOnly) {
		t.Errorf("undo not blocked, got %v", err)
	}
	if err := db.Squash(); !errors.Is(err, common.ErrReadOnly) {
		t.Errorf("squash not blocked, got %v", err)
	}
	if err := db.Commit(0); !errors.Is(err, common.ErrReadOnly) {
		t.Errorf("commit not blocked, got %v", err)
	}
	if err := db.SetRevision(1); !errors.Is(err, common.ErrReadOnly) {
		t.Errorf("set_revision not blocked, got %v", err)
	}
	if err := db.UnsetReadOnlyMode(); err != nil {
		t.Fatalf("failed to leave read-only mode: %v", err)
	}
	if _, err := db.StartUndoSession(false); err != nil {
		t.Errorf("session blocked after leaving read-only mode: %v", err)
	}
}

func TestDatabase_ReopenedReadOnlyCannotBeUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.seg")
	db := openTestDB(t, path, ReadWrite)
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	reader, err := Open(path, ReadOnly, testDBSize, false, Options{})
	if err != nil {
		t.Fatalf("failed to reopen read-only: %v", err)
	}
	defer reader.Close()
	if err := reader.UnsetReadOnlyMode(); !errors.Is(err, common.ErrLogic) {
		t.Errorf("read-only open unset, got %v", err)
	}
}

func TestDatabase_StateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.seg")
	db := openTestDB(t, path, ReadWrite)
	accounts, err := AddIndex(db, accountConfig())
	if err != nil {
		t.Fatalf("failed to add index: %v", err)
	}
	if _, err := accounts.Emplace(func(a *account) { a.Owner = 42; a.Balance = 100 }); err != nil {
		t.Fatalf("failed to emplace: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	reopened := openTestDB(t, path, ReadWrite)
	accounts, err = AddIndex(reopened, accountConfig())
	if err != nil {
		t.Fatalf("failed to re-add index: %v", err)
	}
	got := accounts.Find(account{ID: 0})
	if got == nil || got.Owner != 42 || got.Balance != 100 {
		t.Fatalf("state lost across reopen, got %+v", got)
	}
	if cfg := reopened.Configure(); cfg.DatabaseID != 1 {
		t.Errorf("configure record lost, database id %d", cfg.DatabaseID)
	}
}

func TestDatabase_RowCountPerIndex(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "db.seg"), ReadWrite)
	accounts, err := AddIndex(db, accountConfig())
	if err != nil {
		t.Fatalf("failed to add index: %v", err)
	}
	if _, err := AddIndex(db, balanceConfig()); err != nil {
		t.Fatalf("failed to add index: %v", err)
	}
	for i := 0; i < 3; i++ {
		owner := int64(i)
		if _, err := accounts.Emplace(func(a *account) { a.Owner = owner }); err != nil {
			t.Fatalf("failed to emplace: %v", err)
		}
	}
	counts := db.RowCountPerIndex()
	if len(counts) != 2 {
		t.Fatalf("wrong number of indexes reported, got %d", len(counts))
	}
	if counts[0].Name != "accounts" || counts[0].Count != 3 {
		t.Errorf("wrong accounts row count, got %+v", counts[0])
	}
	if counts[1].Name != "balances" || counts[1].Count != 0 {
		t.Errorf("wrong balances row count, got %+v", counts[1])
	}
}

func TestDatabase_RevisionWithoutIndexes(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "db.seg"), ReadWrite)
	if got := db.Revision(); got != -1 {
		t.Errorf("database without indexes reports revision %d, wanted -1", got)
	}
}
