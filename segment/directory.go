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
	"fmt"

	"github.com/Fantom-foundation/Chainbase/common"
	"golang.org/x/crypto/sha3"
)

// The directory is a fixed-capacity table in the segment header mapping
// the hash of a record name to the offset of the record. Containers use it
// to find their persisted roots on reopen. An entry with offset 0 is free.
const (
	directoryCapacity = 64
	directoryEntrySize = 16
)

func nameHash(name string) uint64 {
	sum := sha3.Sum256([]byte(name))
	h := binary.LittleEndian.Uint64(sum[:8])
	if h == 0 {
		h = 1
	}
	return h
}

// Lookup resolves a published record name to its offset.
func (m *Manager) Lookup(name string) (Offset, bool) {
	hash := nameHash(name)
	for i := 0; i < directoryCapacity; i++ {
		entry := directoryOffset + i*directoryEntrySize
		if binary.LittleEndian.Uint64(m.data[entry:]) != hash {
			continue
		}
		off := Offset(binary.LittleEndian.Uint64(m.data[entry+8:]))
		if off != 0 {
			return off, true
		}
	}
	return 0, false
}

// Publish records the offset of a named record in the directory,
// replacing a previous entry of the same name.
func (m *Manager) Publish(name string, off Offset) error {
	if off == 0 {
		return fmt.Errorf("%w: cannot publish a null offset", common.ErrLogic)
	}
	hash := nameHash(name)
	free := -1
	for i := 0; i < directoryCapacity; i++ {
		entry := directoryOffset + i*directoryEntrySize
		switch binary.LittleEndian.Uint64(m.data[entry:]) {
		case hash:
			binary.LittleEndian.PutUint64(m.data[entry+8:], uint64(off))
			return nil
		case 0:
			if free < 0 {
				free = entry
			}
		}
	}
	if free < 0 {
		return fmt.Errorf("%w: segment directory is full", common.ErrOutOfMemory)
	}
	binary.LittleEndian.PutUint64(m.data[free:], hash)
	binary.LittleEndian.PutUint64(m.data[free+8:], uint64(off))
	return nil
}

// Names the directory cannot recover; records are found by hash only.
// ListEntries reports the populated entries for inspection tooling.
func (m *Manager) ListEntries() []DirectoryEntry {
	var res []DirectoryEntry
	for i := 0; i < directoryCapacity; i++ {
		entry := directoryOffset + i*directoryEntrySize
		hash := binary.LittleEndian.Uint64(m.data[entry:])
		if hash == 0 {
			continue
		}
		res = append(res, DirectoryEntry{
			NameHash: hash,
			Offset:   Offset(binary.LittleEndian.Uint64(m.data[entry+8:])),
		})
	}
	return res
}

// DirectoryEntry is a populated slot of the segment directory.
type DirectoryEntry struct {
	NameHash uint64
	Offset   Offset
}
