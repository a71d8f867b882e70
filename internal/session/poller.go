// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package session

import (
	"context"
	"time"

	"github.com/voltaic/cellscope/pkg/bmsproto"
)

// BusClient is the slice of the session the poller drives. Narrow so tests
// can substitute a fake bus.
type BusClient interface {
	Connected() bool
	NumSlaves() int
	ReadAllData(deviceID byte) (*Telemetry, error)
	ReadDieTemperature1(deviceID byte) (float64, error)
	ReadDieTemperature2(deviceID byte) (float64, error)
}

// Poller runs the periodic telemetry cycle: master first, then each
// configured slave in ascending order, then one snapshot emission. Readings
// from devices that fail a cycle keep their last-good values.
type Poller struct {
	client BusClient
	log    Logger
	events Events

	interval   time.Duration
	intervalCh chan time.Duration

	snap       Snapshot
	slaveCache map[int]*DeviceReadings
}

// NewPoller creates a poller at the default 1 Hz rate. Each completed cycle
// is delivered through events.OnSnapshot.
func NewPoller(client BusClient, log Logger, events Events) *Poller {
	if log == nil {
		log = NopLogger{}
	}
	return &Poller{
		client:     client,
		log:        log,
		events:     events,
		interval:   time.Second,
		intervalCh: make(chan time.Duration, 1),
		snap:       Snapshot{Slaves: map[int]*DeviceReadings{}},
		slaveCache: map[int]*DeviceReadings{},
	}
}

// SetFrequency switches the poll rate. Supported rates are 1.0 Hz and
// 0.5 Hz; anything else falls back to 1.0 Hz. Takes effect on the running
// loop without losing cached readings.
func (p *Poller) SetFrequency(hz float64) {
	interval := time.Second
	if hz == 0.5 {
		interval = 2 * time.Second
	}
	select {
	case p.intervalCh <- interval:
	default:
		// A pending change is superseded.
		<-p.intervalCh
		p.intervalCh <- interval
	}
}

// Run polls until ctx is cancelled. It is not safe to call concurrently
// with itself or PollOnce.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case interval := <-p.intervalCh:
			if interval != p.interval {
				p.interval = interval
				ticker.Reset(interval)
				p.log.App(LevelInfo, "poll interval set to %s", interval)
			}
		case <-ticker.C:
			p.PollOnce()
		}
	}
}

// PollOnce runs one full cycle and emits one snapshot.
func (p *Poller) PollOnce() {
	if !p.client.Connected() {
		return
	}

	if t, err := p.client.ReadAllData(bmsproto.DeviceMaster); err == nil {
		p.snap.PackVoltage = t.PackVoltage
		p.snap.PackCurrent = t.PackCurrent
		p.snap.Master.CellVoltages = t.CellVoltages
		p.snap.Master.Temperatures = t.Temperatures
		p.snap.Master.Fresh = true
	} else {
		p.snap.Master.Fresh = false
		p.log.Bms(LevelWarning, "master poll failed: %v", err)
	}

	if dt1, err := p.client.ReadDieTemperature1(bmsproto.DeviceMaster); err == nil {
		p.snap.Master.DieTemps[0] = dt1
	}
	if dt2, err := p.client.ReadDieTemperature2(bmsproto.DeviceMaster); err == nil {
		p.snap.Master.DieTemps[1] = dt2
	}

	numSlaves := p.client.NumSlaves()
	if numSlaves > bmsproto.MaxSlaves {
		numSlaves = bmsproto.MaxSlaves
	}
	for slave := 1; slave <= numSlaves; slave++ {
		if !p.client.Connected() {
			// The link can drop mid-cycle; stop issuing commands.
			break
		}

		id, err := bmsproto.SlaveDeviceID(slave)
		if err != nil {
			continue
		}

		readings := p.slaveCache[slave]
		if readings == nil {
			readings = &DeviceReadings{}
			p.slaveCache[slave] = readings
		}

		if t, err := p.client.ReadAllData(id); err == nil {
			readings.CellVoltages = t.CellVoltages
			readings.Temperatures = t.Temperatures
			readings.Fresh = true
		} else {
			readings.Fresh = false
			p.log.Bms(LevelWarning, "slave %d poll failed: %v", slave, err)
		}

		if dt1, err := p.client.ReadDieTemperature1(id); err == nil {
			readings.DieTemps[0] = dt1
		}
		if dt2, err := p.client.ReadDieTemperature2(id); err == nil {
			readings.DieTemps[1] = dt2
		}
	}

	// The emitted view holds only the configured slaves; the cache may
	// remember more from before a reconfiguration.
	p.snap.Taken = time.Now()
	p.snap.Slaves = map[int]*DeviceReadings{}
	for slave := 1; slave <= numSlaves; slave++ {
		if r := p.slaveCache[slave]; r != nil {
			p.snap.Slaves[slave] = r
		}
	}

	p.events.emitSnapshot(p.snap.clone())
}
