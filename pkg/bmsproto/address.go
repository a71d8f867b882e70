// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package bmsproto

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned for out-of-range device addressing inputs.
var ErrInvalidArgument = errors.New("invalid argument")

// SlaveDeviceID maps a 1-based slave number to its bus device id.
// Slave 1 answers at 0x02, slave 35 at 0x24.
func SlaveDeviceID(slave int) (byte, error) {
	if slave < 1 || slave > MaxSlaves {
		return 0, fmt.Errorf("%w: slave number %d, must be 1-%d", ErrInvalidArgument, slave, MaxSlaves)
	}
	return byte(slave + 1), nil
}

// SlaveNumber maps a bus device id back to its 1-based slave number.
func SlaveNumber(deviceID byte) (int, error) {
	if deviceID < 0x02 || deviceID > DeviceMaster+MaxSlaves {
		return 0, fmt.Errorf("%w: slave device id 0x%02X, must be 0x02-0x%02X", ErrInvalidArgument, deviceID, DeviceMaster+MaxSlaves)
	}
	return int(deviceID) - 1, nil
}

// ValidDeviceID reports whether id is addressable on this bus (the master or
// any slave).
func ValidDeviceID(id byte) bool {
	return id >= DeviceMaster && id <= DeviceMaster+MaxSlaves
}
