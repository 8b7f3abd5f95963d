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
	"fmt"
	"os"

	"github.com/Fantom-foundation/Chainbase/common"
	mmap "github.com/edsrzf/mmap-go"
)

// File is a manager over a memory-mapped file. A file opened for writing
// carries a dirty flag for the whole of its lifetime; the flag is cleared
// by a clean Close. Opening a file whose flag is still set means a writer
// died mid-mutation and the image may violate container invariants.
type File struct {
	*Manager
	file     *os.File
	mapping  mmap.MMap
	readOnly bool
	closed   bool
}

// OpenFile opens or creates a segment file of the given size and maps it
// into the process. An existing file must match the requested size and
// carry a valid header. A dirty file is rejected unless allowDirty is set.
func OpenFile(path string, readWrite bool, size int64, allowDirty bool) (*File, error) {
	flags := os.O_RDONLY
	prot := mmap.RDONLY
	if readWrite {
		flags = os.O_RDWR | os.O_CREATE
		prot = mmap.RDWR
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat segment file %s: %w", path, err)
	}
	fresh := info.Size() == 0
	if fresh {
		if !readWrite {
			_ = f.Close()
			return nil, fmt.Errorf("%w: segment file %s does not exist", common.ErrLogic, path)
		}
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to size segment file %s: %w", path, err)
		}
	} else if info.Size() != size {
		_ = f.Close()
		return nil, fmt.Errorf("%w: segment file %s has %d bytes, requested %d", common.ErrLogic, path, info.Size(), size)
	}

	mapping, err := mmap.Map(f, prot, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to map segment file %s: %w", path, err)
	}

	res := &File{file: f, mapping: mapping, readOnly: !readWrite}
	if fresh {
		res.Manager, err = initManager(mapping)
	} else {
		res.Manager, err = attachManager(mapping)
	}
	if err != nil {
		_ = mapping.Unmap()
		_ = f.Close()
		return nil, err
	}
	if !fresh && res.Manager.dirty() && !allowDirty {
		_ = mapping.Unmap()
		_ = f.Close()
		return nil, fmt.Errorf("%w: segment file %s was not closed cleanly", common.ErrCorrupted, path)
	}
	if readWrite {
		res.Manager.setDirty(true)
	}
	return res, nil
}

// Flush forces the mapped region out to the file.
func (f *File) Flush() error {
	if f.readOnly {
		return nil
	}
	if err := f.mapping.Flush(); err != nil {
		return fmt.Errorf("failed to flush segment: %w", err)
	}
	return nil
}

// Close flushes, clears the dirty flag, and releases the mapping. The
// manager must not be used afterwards; closing twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if !f.readOnly {
		f.Manager.setDirty(false)
		if err := f.mapping.Flush(); err != nil {
			_ = f.mapping.Unmap()
			_ = f.file.Close()
			return fmt.Errorf("failed to flush segment: %w", err)
		}
	}
	if err := f.mapping.Unmap(); err != nil {
		_ = f.file.Close()
		return fmt.Errorf("failed to unmap segment: %w", err)
	}
	return f.file.Close()
}

// ReadOnly reports whether the file was opened without write access.
func (f *File) ReadOnly() bool {
	return f.readOnly
}
