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

// NewMemory creates a manager over an anonymous heap region of the given
// size. Its content does not outlive the process; intended for tests and
// for scratch databases.
func NewMemory(size int64) (*Manager, error) {
	return initManager(make([]byte, size))
}
