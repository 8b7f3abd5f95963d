// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package shared provides variable-length byte strings held inside
// container values.
//
// A value's node image has a fixed size, so variable-length content is
// stored out of line and referenced by a (segment-manager-id, offset)
// pair. The id is resolved through the process-wide segment registry at
// every access, which keeps the reference valid across restarts and in
// other processes mapping the same segments. Writes follow a
// copy-on-write discipline: new content is allocated from the writable
// segment named by the database-configure record, leaving content in
// read-only segments untouched.
package shared

import (
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/Chainbase/common"
	"github.com/Fantom-foundation/Chainbase/segment"
)

// EncodedSize is the fixed size of a Bytes reference inside a value
// image.
const EncodedSize = 16

// Bytes references a byte string stored out of line in a registered
// segment. The zero value is the empty string.
type Bytes struct {
	segID  uint16
	off    segment.Offset
	length uint32
}

// Make stores data in the given segment and returns the reference. The
// segment must be registered.
func Make(m *segment.Manager, data []byte) (Bytes, error) {
	if len(data) == 0 {
		return Bytes{}, nil
	}
	id, err := segment.IDOf(m)
	if err != nil {
		return Bytes{}, err
	}
	off, err := m.Allocate(int64(len(data)))
	if err != nil {
		return Bytes{}, err
	}
	copy(m.Bytes(off, int64(len(data))), data)
	return Bytes{segID: id, off: off, length: uint32(len(data))}, nil
}

// Load resolves the reference and returns a copy of the content.
func (b Bytes) Load() ([]byte, error) {
	if b.off == 0 {
		return nil, nil
	}
	m, err := segment.ByID(b.segID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve shared bytes: %w", err)
	}
	res := make([]byte, b.length)
	copy(res, m.Bytes(b.off, int64(b.length)))
	return res, nil
}

// Len returns the content length.
func (b Bytes) Len() int {
	return int(b.length)
}

// Empty reports whether the reference holds no content.
func (b Bytes) Empty() bool {
	return b.off == 0
}

// Assign replaces the content, allocating from the writable segment. The
// previous content is released only when it lives in the writable
// segment itself; content in other segments is left for their owners.
func (b *Bytes) Assign(writable *segment.Manager, data []byte) error {
	id, err := segment.IDOf(writable)
	if err != nil {
		return err
	}
	if b.off != 0 && b.segID == id {
		writable.Free(b.off, int64(b.length))
	}
	replacement, err := Make(writable, data)
	if err != nil {
		return err
	}
	*b = replacement
	return nil
}

// Release frees the content if its segment is registered in this
// process. The reference becomes empty.
func (b *Bytes) Release() {
	if b.off == 0 {
		return
	}
	if m, err := segment.ByID(b.segID); err == nil {
		m.Free(b.off, int64(b.length))
	}
	*b = Bytes{}
}

// Equal compares the contents of two references.
func (b Bytes) Equal(other Bytes) bool {
	if b.off == 0 && other.off == 0 {
		return true
	}
	left, err := b.Load()
	if err != nil {
		return false
	}
	right, err := other.Load()
	if err != nil {
		return false
	}
	return string(left) == string(right)
}

// Store encodes the reference into a value image.
func (b Bytes) Store(trg []byte) {
	binary.LittleEndian.PutUint64(trg, uint64(b.off))
	binary.LittleEndian.PutUint32(trg[8:], b.length)
	binary.LittleEndian.PutUint16(trg[12:], b.segID)
}

// LoadFrom decodes a reference from a value image.
func LoadFrom(src []byte) (Bytes, error) {
	if len(src) < EncodedSize {
		return Bytes{}, fmt.Errorf("%w: shared bytes reference truncated", common.ErrCorrupted)
	}
	return Bytes{
		off:    segment.Offset(binary.LittleEndian.Uint64(src)),
		length: binary.LittleEndian.Uint32(src[8:]),
		segID:  binary.LittleEndian.Uint16(src[12:]),
	}, nil
}
