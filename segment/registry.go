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

	"github.com/Fantom-foundation/Chainbase/common"
)

// The registry is the process-wide table translating the 16-bit segment
// manager identifiers stored in persisted records back into the managers
// the process currently has mapped. Records saving an (id, offset) pair
// stay valid across restarts and across processes as long as each process
// registers its mapping of the segment under the same identifier.
//
// Like every part of this library the registry is single-threaded: it is
// populated while databases are mounted and read afterwards, with no
// internal locking. Its lifetime is the lifetime of the process.
var (
	registry        = map[uint16]*Manager{}
	registryReverse = map[*Manager]uint16{}
)

// Register binds an identifier to a manager, replacing any existing
// binding of the same identifier. Identifier 0 is reserved.
func Register(id uint16, m *Manager) error {
	if id == 0 {
		return fmt.Errorf("%w: segment manager id 0 is reserved", common.ErrLogic)
	}
	if old, exists := registry[id]; exists {
		delete(registryReverse, old)
	}
	registry[id] = m
	registryReverse[m] = id
	return nil
}

// Unregister removes the binding of an identifier, if any.
func Unregister(id uint16) {
	if old, exists := registry[id]; exists {
		delete(registryReverse, old)
		delete(registry, id)
	}
}

// ByID resolves an identifier to the registered manager.
func ByID(id uint16) (*Manager, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: segment manager id 0 is reserved", common.ErrLogic)
	}
	m, exists := registry[id]
	if !exists {
		return nil, fmt.Errorf("%w: no segment registered under id %d", common.ErrNotFound, id)
	}
	return m, nil
}

// IDOf resolves a manager back to the identifier it is registered under.
func IDOf(m *Manager) (uint16, error) {
	id, exists := registryReverse[m]
	if !exists {
		return 0, fmt.Errorf("%w: segment is not registered", common.ErrNotFound)
	}
	return id, nil
}
