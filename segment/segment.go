// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package segment provides the memory region containers are placed in.
//
// A segment is a contiguous, fixed-size byte region, either anonymous heap
// memory or the mapping of a file on disk. All references between records
// inside a segment are relative offsets, never absolute pointers, so the
// same image is valid wherever a process maps it. The Manager carves
// allocations out of the region and keeps a small amount of metadata in a
// header at the start of the region: a format tag, a dirty flag, the
// allocation cursor, the database-configure record, and a directory of
// named records by which containers find their persisted state on reopen.
//
// Access to a segment is single-threaded: one writer at a time, no
// internal locking. Read-only observers in other processes may map the
// same file while the writer is quiescent.
package segment

import (
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/Chainbase/common"
)

// Offset addresses a byte position within a segment. Offset 0 is inside
// the segment header and therefore never a valid allocation; it doubles as
// the null reference.
type Offset int64

const (
	headerSize = 4096

	magicOffset      = 0
	versionOffset    = 8
	flagsOffset      = 12
	sizeOffset       = 16
	allocPtrOffset   = 24
	databaseIDOffset = 32
	instanceIDOffset = 40
	uniqueIDOffset   = 48
	writableIDOffset = 50
	directoryOffset  = 56

	formatVersion = 1

	flagDirty = 1 << 0

	// Allocations are aligned such that the low two bits of any offset
	// difference are zero, as required by the hook link encoding.
	allocAlignment = 8
)

var magic = [8]byte{'C', 'H', 'N', 'B', 'S', 'E', 'G', '1'}

// MaxSegmentManagerID bounds the identifier space of the process-wide
// segment registry. Identifier 0 is reserved.
const MaxSegmentManagerID = 0xFFFF

// Manager serves fixed-size allocations out of a segment and owns the
// segment header. It is the Go rendition of a mapped-file segment manager:
// the allocation cursor is part of the persisted image, while the recycling
// lists for manager-level frees are process-local (freed blocks are merely
// unreachable, not leaked, after a restart). Node-level recycling, which
// carries nearly all traffic, is handled by the free-listed node allocator
// on top of this type and is persisted.
type Manager struct {
	data     []byte
	recycled map[int64][]Offset
}

// initManager initializes a manager over a fresh region.
func initManager(data []byte) (*Manager, error) {
	if int64(len(data)) < headerSize {
		return nil, fmt.Errorf("%w: segment of %d bytes is smaller than its header", common.ErrLogic, len(data))
	}
	m := &Manager{data: data, recycled: map[int64][]Offset{}}
	copy(data[magicOffset:], magic[:])
	binary.LittleEndian.PutUint32(data[versionOffset:], formatVersion)
	binary.LittleEndian.PutUint32(data[flagsOffset:], 0)
	binary.LittleEndian.PutUint64(data[sizeOffset:], uint64(len(data)))
	binary.LittleEndian.PutUint64(data[allocPtrOffset:], headerSize)
	return m, nil
}

// attachManager validates the header of an existing region and attaches a
// manager to it.
func attachManager(data []byte) (*Manager, error) {
	if int64(len(data)) < headerSize {
		return nil, fmt.Errorf("%w: segment of %d bytes is smaller than its header", common.ErrCorrupted, len(data))
	}
	if [8]byte(data[magicOffset:magicOffset+8]) != magic {
		return nil, fmt.Errorf("%w: segment magic mismatch", common.ErrCorrupted)
	}
	if got, want := binary.LittleEndian.Uint32(data[versionOffset:]), uint32(formatVersion); got != want {
		return nil, fmt.Errorf("%w: unsupported segment format version, got %d, wanted %d", common.ErrCorrupted, got, want)
	}
	if got, want := binary.LittleEndian.Uint64(data[sizeOffset:]), uint64(len(data)); got != want {
		return nil, fmt.Errorf("%w: segment size mismatch, header says %d, region has %d", common.ErrCorrupted, got, want)
	}
	return &Manager{data: data, recycled: map[int64][]Offset{}}, nil
}

// Allocate reserves size bytes and returns their offset. The returned
// offset is aligned to 8 bytes. Allocation never moves the region; when
// the region is exhausted the call fails with ErrOutOfMemory.
func (m *Manager) Allocate(size int64) (Offset, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: invalid allocation size %d", common.ErrLogic, size)
	}
	size = align(size)
	if list := m.recycled[size]; len(list) > 0 {
		off := list[len(list)-1]
		m.recycled[size] = list[:len(list)-1]
		return off, nil
	}
	cursor := Offset(binary.LittleEndian.Uint64(m.data[allocPtrOffset:]))
	if int64(cursor)+size > int64(len(m.data)) {
		return 0, fmt.Errorf("%w: cannot serve %d bytes, %d free", common.ErrOutOfMemory, size, int64(len(m.data))-int64(cursor))
	}
	binary.LittleEndian.PutUint64(m.data[allocPtrOffset:], uint64(int64(cursor)+size))
	clear(m.data[cursor : int64(cursor)+size])
	return cursor, nil
}

// Free returns a block obtained from Allocate with the given size. The
// block becomes available to later allocations of the same size within
// this process.
func (m *Manager) Free(off Offset, size int64) {
	size = align(size)
	m.recycled[size] = append(m.recycled[size], off)
}

// Bytes returns a view of n bytes starting at the given offset. The view
// aliases the segment; writes through it are writes to the segment.
func (m *Manager) Bytes(off Offset, n int64) []byte {
	return m.data[off : int64(off)+n : int64(off)+n]
}

// Data exposes the whole region. Intended for relative-offset arithmetic
// by the intrusive tree layer and for inspection tooling.
func (m *Manager) Data() []byte {
	return m.data
}

// Size returns the total size of the region.
func (m *Manager) Size() int64 {
	return int64(len(m.data))
}

// FreeMemory returns the number of never-allocated bytes remaining.
func (m *Manager) FreeMemory() int64 {
	return int64(len(m.data)) - int64(binary.LittleEndian.Uint64(m.data[allocPtrOffset:]))
}

func (m *Manager) dirty() bool {
	return binary.LittleEndian.Uint32(m.data[flagsOffset:])&flagDirty != 0
}

func (m *Manager) setDirty(dirty bool) {
	flags := binary.LittleEndian.Uint32(m.data[flagsOffset:])
	if dirty {
		flags |= flagDirty
	} else {
		flags &^= flagDirty
	}
	binary.LittleEndian.PutUint32(m.data[flagsOffset:], flags)
}

func align(size int64) int64 {
	return (size + allocAlignment - 1) &^ (allocAlignment - 1)
}

func clear(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
