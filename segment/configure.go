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
)

// Configure is the database-configure record persisted in the segment
// header. It names the logical database stored in the segment and the
// registry identifiers under which this segment and the segment receiving
// copy-on-write objects are registered at mount time.
type Configure struct {
	DatabaseID               uint64
	InstanceID               uint64
	UniqueSegmentManagerID   uint16
	WritableSegmentManagerID uint16
}

// GetConfigure reads the database-configure record.
func (m *Manager) GetConfigure() Configure {
	return Configure{
		DatabaseID:               binary.LittleEndian.Uint64(m.data[databaseIDOffset:]),
		InstanceID:               binary.LittleEndian.Uint64(m.data[instanceIDOffset:]),
		UniqueSegmentManagerID:   binary.LittleEndian.Uint16(m.data[uniqueIDOffset:]),
		WritableSegmentManagerID: binary.LittleEndian.Uint16(m.data[writableIDOffset:]),
	}
}

// SetConfigure writes the database-configure record. Segment manager
// identifiers must be in [1, MaxSegmentManagerID]; identifier 0 is
// reserved and rejected.
func (m *Manager) SetConfigure(c Configure) error {
	if c.UniqueSegmentManagerID == 0 || c.WritableSegmentManagerID == 0 {
		return fmt.Errorf("%w: segment manager id 0 is reserved", common.ErrLogic)
	}
	binary.LittleEndian.PutUint64(m.data[databaseIDOffset:], c.DatabaseID)
	binary.LittleEndian.PutUint64(m.data[instanceIDOffset:], c.InstanceID)
	binary.LittleEndian.PutUint16(m.data[uniqueIDOffset:], c.UniqueSegmentManagerID)
	binary.LittleEndian.PutUint16(m.data[writableIDOffset:], c.WritableSegmentManagerID)
	return nil
}
