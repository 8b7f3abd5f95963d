// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package segment

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fantom-foundation/Chainbase/common"
)

const testFileSize = 1 << 20

func TestFile_ContentSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.seg")

	file, err := OpenFile(path, true, testFileSize, false)
	if err != nil {
		t.Fatalf("failed to create segment file: %v", err)
	}
	if err := file.SetConfigure(Configure{DatabaseID: 5, UniqueSegmentManagerID: 1, WritableSegmentManagerID: 1}); err != nil {
		t.Fatalf("failed to set configure record: %v", err)
	}
	off, err := file.Allocate(64)
	if err != nil {
		t.Fatalf("failed to allocate: %v", err)
	}
	binary.LittleEndian.PutUint64(file.Bytes(off, 8), 0xfeedface)
	if err := file.Publish("payload", off); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	reopened, err := OpenFile(path, true, testFileSize, false)
	if err != nil {
		t.Fatalf("failed to reopen segment file: %v", err)
	}
	defer reopened.Close()
	if got := reopened.GetConfigure().DatabaseID; got != 5 {
		t.Errorf("configure record lost across reopen, database id %d", got)
	}
	got, ok := reopened.Lookup("payload")
	if !ok || got != off {
		t.Fatalf("directory lost across reopen, lookup = %d (%t)", got, ok)
	}
	if v := binary.LittleEndian.Uint64(reopened.Bytes(got, 8)); v != 0xfeedface {
		t.Errorf("payload lost across reopen, got %x", v)
	}
}

func TestFile_ReadOnlyOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.seg")
	file, err := OpenFile(path, true, testFileSize, false)
	if err != nil {
		t.Fatalf("failed to create segment file: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	reader, err := OpenFile(path, false, testFileSize, false)
	if err != nil {
		t.Fatalf("failed to open read-only: %v", err)
	}
	defer reader.Close()
	if !reader.ReadOnly() {
		t.Errorf("read-only file not flagged read-only")
	}
}

func TestFile_DirtySegmentIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.seg")
	file, err := OpenFile(path, true, testFileSize, false)
	if err != nil {
		t.Fatalf("failed to create segment file: %v", err)
	}
	// simulate a writer dying mid-mutation: flush with the dirty flag
	// still set, then drop the mapping without the clean-close path
	if err := file.mapping.Flush(); err != nil {
		t.Fatalf("failed to flush: %v", err)
	}
	if err := file.mapping.Unmap(); err != nil {
		t.Fatalf("failed to unmap: %v", err)
	}
	if err := file.file.Close(); err != nil {
		t.Fatalf("failed to close file handle: %v", err)
	}

	if _, err := OpenFile(path, true, testFileSize, false); !errors.Is(err, common.ErrCorrupted) {
		t.Fatalf("dirty segment not rejected, got %v", err)
	}
	salvage, err := OpenFile(path, true, testFileSize, true)
	if err != nil {
		t.Fatalf("dirty segment not salvageable with allow-dirty: %v", err)
	}
	_ = salvage.Close()
}

func TestFile_SizeMismatchIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.seg")
	file, err := OpenFile(path, true, testFileSize, false)
	if err != nil {
		t.Fatalf("failed to create segment file: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
	if _, err := OpenFile(path, true, testFileSize*2, false); !errors.Is(err, common.ErrLogic) {
		t.Errorf("size mismatch not rejected, got %v", err)
	}
}

func TestFile_MissingFileIsRejectedReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.seg")
	if _, err := OpenFile(path, false, testFileSize, false); err == nil {
		t.Errorf("read-only open of a missing file succeeded")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("read-only open created the file")
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	m, err := NewMemory(1 << 16)
	if err != nil {
		t.Fatalf("failed to create segment: %v", err)
	}
	t.Cleanup(func() { Unregister(17) })

	if err := Register(17, m); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	got, err := ByID(17)
	if err != nil {
		t.Fatalf("failed to resolve id: %v", err)
	}
	if got != m {
		t.Errorf("resolved the wrong segment")
	}
	id, err := IDOf(m)
	if err != nil {
		t.Fatalf("failed to reverse-resolve: %v", err)
	}
	if id != 17 {
		t.Errorf("reverse lookup returned %d, wanted 17", id)
	}
}

func TestRegistry_ReservedAndUnknownIdsFail(t *testing.T) {
	m, err := NewMemory(1 << 16)
	if err != nil {
		t.Fatalf("failed to create segment: %v", err)
	}
	if err := Register(0, m); !errors.Is(err, common.ErrLogic) {
		t.Errorf("registering id 0 not rejected, got %v", err)
	}
	if _, err := ByID(0); !errors.Is(err, common.ErrLogic) {
		t.Errorf("resolving id 0 not rejected, got %v", err)
	}
	if _, err := ByID(9999); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("resolving an unknown id not rejected, got %v", err)
	}
	if _, err := IDOf(m); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("reverse-resolving an unregistered segment not rejected, got %v", err)
	}
}

func TestRegistry_RegistrationReplaces(t *testing.T) {
	a, _ := NewMemory(1 << 16)
	b, _ := NewMemory(1 << 16)
	t.Cleanup(func() { Unregister(21) })

	if err := Register(21, a); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if err := Register(21, b); err != nil {
		t.Fatalf("failed to re-register: %v", err)
	}
	got, err := ByID(21)
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}
	if got != b {
		t.Errorf("re-registration did not replace")
	}
	if _, err := IDOf(a); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("replaced segment still reverse-resolves, got %v", err)
	}
}
