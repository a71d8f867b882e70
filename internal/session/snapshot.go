// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package session

import (
	"time"

	"github.com/voltaic/cellscope/pkg/bmsproto"
)

// Telemetry is one decoded combined read from a single device.
type Telemetry struct {
	PackVoltage  float64
	PackCurrent  float64
	CellVoltages [bmsproto.CellCount]float64
	Temperatures [bmsproto.TempZoneCount]float64
}

// DeviceReadings is the last-known state of one device on the bus. Values
// persist across failed polls; Fresh reports whether the most recent poll of
// this device succeeded.
type DeviceReadings struct {
	CellVoltages [bmsproto.CellCount]float64
	Temperatures [bmsproto.TempZoneCount]float64
	DieTemps     [2]float64
	Fresh        bool
}

// Snapshot is one consistent view of the whole stack, emitted after each
// poll cycle. Slaves is keyed by 1-based slave number and holds only the
// configured slave count, regardless of what the cache remembers.
type Snapshot struct {
	Taken       time.Time
	PackVoltage float64
	PackCurrent float64
	Master      DeviceReadings
	Slaves      map[int]*DeviceReadings
}

// clone deep-copies the snapshot so consumers never observe poller mutation.
func (s *Snapshot) clone() Snapshot {
	out := *s
	out.Slaves = make(map[int]*DeviceReadings, len(s.Slaves))
	for n, r := range s.Slaves {
		c := *r
		out.Slaves[n] = &c
	}
	return out
}
