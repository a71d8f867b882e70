// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

// Package recorder appends snapshot records to a CBOR stream file for
// offline analysis. One Record per poll cycle, concatenated; decode with any
// streaming CBOR reader.
package recorder

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/voltaic/cellscope/internal/session"
)

// DeviceRecord is the per-device slice of a record.
type DeviceRecord struct {
	Slave        int       `cbor:"1,keyasint"`
	CellVoltages []float64 `cbor:"2,keyasint"`
	Temperatures []float64 `cbor:"3,keyasint"`
	DieTemps     []float64 `cbor:"4,keyasint,omitempty"`
	Fresh        bool      `cbor:"5,keyasint"`
}

// Record is one encoded snapshot. Integer keys keep the stream compact at
// poll rate.
type Record struct {
	TakenUnixMs int64          `cbor:"1,keyasint"`
	PackVoltage float64        `cbor:"2,keyasint"`
	PackCurrent float64        `cbor:"3,keyasint"`
	Master      DeviceRecord   `cbor:"4,keyasint"`
	Slaves      []DeviceRecord `cbor:"5,keyasint,omitempty"`
}

// Recorder encodes records onto a writer. Safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	c   io.Closer
	enc *cbor.Encoder
}

// Open creates or appends to the stream file at path.
func Open(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}
	return &Recorder{c: f, enc: cbor.NewEncoder(f)}, nil
}

// NewWriter records onto an arbitrary writer.
func NewWriter(w io.Writer) *Recorder {
	return &Recorder{enc: cbor.NewEncoder(w)}
}

// Write appends one snapshot to the stream.
func (r *Recorder) Write(snap session.Snapshot) error {
	rec := Record{
		TakenUnixMs: snap.Taken.UnixMilli(),
		PackVoltage: snap.PackVoltage,
		PackCurrent: snap.PackCurrent,
		Master: DeviceRecord{
			CellVoltages: snap.Master.CellVoltages[:],
			Temperatures: snap.Master.Temperatures[:],
			DieTemps:     snap.Master.DieTemps[:],
			Fresh:        snap.Master.Fresh,
		},
	}
	nums := make([]int, 0, len(snap.Slaves))
	for n := range snap.Slaves {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, slave := range nums {
		d := snap.Slaves[slave]
		rec.Slaves = append(rec.Slaves, DeviceRecord{
			Slave:        slave,
			CellVoltages: d.CellVoltages[:],
			Temperatures: d.Temperatures[:],
			DieTemps:     d.DieTemps[:],
			Fresh:        d.Fresh,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return nil
}

// Close closes the underlying file, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil {
		return nil
	}
	return r.c.Close()
}
