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

// ValueCodec translates values between their Go representation and the
// fixed-size byte image stored inside a node. Load must fully overwrite
// the target value.
type ValueCodec[V any] interface {
	// EncodedSize returns the fixed number of bytes of one encoded value.
	EncodedSize() int
	// Store encodes the given value into the given byte slice.
	Store(trg []byte, v *V) error
	// Load restores the value encoded in the given byte slice.
	Load(src []byte, v *V) error
}
