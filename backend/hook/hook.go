// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package hook implements the fixed-layout node header used by the
// intrusive tree and list algorithms.
//
// A hook is 16 bytes: three signed 42-bit link fields (parent, left,
// right) and one signed 2-bit field holding the AVL balance, packed into
// two little-endian 64-bit words. A link stores the distance from the hook
// to its target divided by 4; since every hook lives at a 4-byte aligned
// offset, real link values always have zero low bits before scaling, which
// makes the value 1 unreachable and usable as the null sentinel. Scaling
// by 4 extends the addressable span of the 42-bit fields to offsets in
// [-2^43, +2^42], enough for any practical segment.
package hook

import (
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/Chainbase/common"
)

// Size is the byte size of one hook.
const Size = 16

// Field selects one of the three link fields of a hook.
type Field int

const (
	Parent Field = iota
	Left
	Right
)

const (
	fieldWidth = 42
	fieldMask  = (1 << fieldWidth) - 1
	signBit    = 1 << (fieldWidth - 1)

	balanceShift = 3 * fieldWidth // bits 126..127
	nullLink     = 1

	maxScaledOffset = 1 << 42
	minScaledOffset = -(1 << 43)
)

// GetLink resolves a link field to the absolute offset of the target
// hook. The second result is false for a null link.
func GetLink(seg []byte, hookOff int64, f Field) (int64, bool) {
	raw := getField(seg, hookOff, int(f)*fieldWidth)
	if raw == nullLink {
		return 0, false
	}
	return hookOff + raw<<2, true
}

// SetLink points a link field at the hook at target. Both hooks must be
// 4-byte aligned relative to each other and within the scaled 42-bit
// range; violations indicate corrupted bookkeeping and fail.
func SetLink(seg []byte, hookOff int64, f Field, target int64) error {
	offset := target - hookOff
	if offset == 0 {
		return fmt.Errorf("%w: hook must not link to itself", common.ErrCorrupted)
	}
	if offset&0x3 != 0 {
		return fmt.Errorf("%w: link offset %d is not aligned", common.ErrCorrupted, offset)
	}
	if offset > maxScaledOffset {
		return fmt.Errorf("%w: link offset %d is too large", common.ErrCorrupted, offset)
	}
	if offset < minScaledOffset {
		return fmt.Errorf("%w: link offset %d is too small", common.ErrCorrupted, offset)
	}
	setField(seg, hookOff, int(f)*fieldWidth, offset>>2)
	return nil
}

// SetNull clears a link field.
func SetNull(seg []byte, hookOff int64, f Field) {
	setField(seg, hookOff, int(f)*fieldWidth, nullLink)
}

// Balance returns the signed 2-bit balance field. Tree nodes use the
// values -1, 0, and +1; the remaining value -2 flags a node parked on the
// removed list.
func Balance(seg []byte, hookOff int64) int {
	raw := binary.LittleEndian.Uint64(seg[hookOff+8:]) >> (balanceShift - 64)
	v := int(raw & 0x3)
	if v >= 2 {
		v -= 4
	}
	return v
}

// SetBalance stores the signed 2-bit balance field.
func SetBalance(seg []byte, hookOff int64, balance int) {
	hi := binary.LittleEndian.Uint64(seg[hookOff+8:])
	shift := balanceShift - 64
	hi &^= uint64(0x3) << shift
	hi |= (uint64(balance) & 0x3) << shift
	binary.LittleEndian.PutUint64(seg[hookOff+8:], hi)
}

// Clear resets all fields: null links and zero balance.
func Clear(seg []byte, hookOff int64) {
	SetNull(seg, hookOff, Parent)
	SetNull(seg, hookOff, Left)
	SetNull(seg, hookOff, Right)
	SetBalance(seg, hookOff, 0)
}

// List threading: the removed and old-value lists reuse the right field as
// the next pointer of a singly linked list.

// GetNext resolves the list-next link.
func GetNext(seg []byte, hookOff int64) (int64, bool) {
	return GetLink(seg, hookOff, Right)
}

// SetNext points the list-next link at the hook at target.
func SetNext(seg []byte, hookOff int64, target int64) error {
	return SetLink(seg, hookOff, Right, target)
}

// SetNextNull terminates the list at this hook.
func SetNextNull(seg []byte, hookOff int64) {
	SetNull(seg, hookOff, Right)
}

// getField extracts the signed 42-bit field starting at the given bit
// position of the 128-bit hook.
func getField(seg []byte, hookOff int64, pos int) int64 {
	lo := binary.LittleEndian.Uint64(seg[hookOff:])
	hi := binary.LittleEndian.Uint64(seg[hookOff+8:])
	var raw uint64
	switch {
	case pos+fieldWidth <= 64:
		raw = (lo >> pos) & fieldMask
	case pos >= 64:
		raw = (hi >> (pos - 64)) & fieldMask
	default:
		raw = ((lo >> pos) | (hi << (64 - pos))) & fieldMask
	}
	if raw&signBit != 0 {
		raw |= ^uint64(fieldMask)
	}
	return int64(raw)
}

// setField stores the low 42 bits of value at the given bit position.
func setField(seg []byte, hookOff int64, pos int, value int64) {
	raw := uint64(value) & fieldMask
	lo := binary.LittleEndian.Uint64(seg[hookOff:])
	hi := binary.LittleEndian.Uint64(seg[hookOff+8:])
	switch {
	case pos+fieldWidth <= 64:
		lo &^= uint64(fieldMask) << pos
		lo |= raw << pos
	case pos >= 64:
		hi &^= uint64(fieldMask) << (pos - 64)
		hi |= raw << (pos - 64)
	default:
		lowBits := 64 - pos
		lo &^= uint64(fieldMask) << pos
		lo |= raw << pos
		hi &^= fieldMask >> lowBits
		hi |= raw >> lowBits
	}
	binary.LittleEndian.PutUint64(seg[hookOff:], lo)
	binary.LittleEndian.PutUint64(seg[hookOff+8:], hi)
}
