// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package session

import (
	"testing"

	"github.com/voltaic/cellscope/pkg/bmsproto"
)

// registerResponder scripts a device exposing fixed register contents.
// Writes echo; reads at a known address return the mapped payload.
func registerResponder(registers map[byte][]byte) func([]byte) []byte {
	return func(frame []byte) []byte {
		if len(frame) < 4 {
			return nil
		}
		if frame[2] == bmsproto.FuncWrite {
			return frame
		}
		payload, ok := registers[frame[3]]
		if !ok {
			return nil
		}
		return readReply(frame[1], payload)
	}
}

func TestSingleRegisterReads(t *testing.T) {
	conn := &fakeConn{respond: registerResponder(map[byte][]byte{
		bmsproto.AddrPackVoltage: {0xBB, 0x7E},             // 48.254 V
		bmsproto.AddrPackCurrent: {0x00, 0x00, 0x03, 0xE8}, // 1.0 A
		bmsproto.AddrDieTemp1:    {0x01, 0x7A},             // 37.8 C
		bmsproto.AddrDieTemp2:    {0xFF, 0xFF},             // -0.1 C
	})}

	s := newTestSession(t, conn, Events{})
	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	t.Run("pack voltage", func(t *testing.T) {
		v, err := s.ReadPackVoltage(bmsproto.DeviceMaster)
		if err != nil {
			t.Fatalf("ReadPackVoltage() error = %v", err)
		}
		if v != 48.254 {
			t.Errorf("voltage = %v, want 48.254", v)
		}
	})

	t.Run("pack current", func(t *testing.T) {
		i, err := s.ReadPackCurrent(bmsproto.DeviceMaster)
		if err != nil {
			t.Fatalf("ReadPackCurrent() error = %v", err)
		}
		if i != 1.0 {
			t.Errorf("current = %v, want 1.0", i)
		}
	})

	t.Run("die temperatures", func(t *testing.T) {
		dt1, err := s.ReadDieTemperature1(bmsproto.DeviceMaster)
		if err != nil {
			t.Fatalf("ReadDieTemperature1() error = %v", err)
		}
		if dt1 != 37.8 {
			t.Errorf("die temp 1 = %v, want 37.8", dt1)
		}

		dt2, err := s.ReadDieTemperature2(bmsproto.DeviceMaster)
		if err != nil {
			t.Fatalf("ReadDieTemperature2() error = %v", err)
		}
		if dt2 != -0.1 {
			t.Errorf("die temp 2 = %v, want -0.1", dt2)
		}
	})
}

func TestCellAndTemperatureFallbackReads(t *testing.T) {
	cells := make([]byte, 2*bmsproto.CellCount)
	for i := 0; i < bmsproto.CellCount; i++ {
		// 3.300 V + i millivolts
		raw := uint16(3300 + i)
		cells[2*i] = byte(raw >> 8)
		cells[2*i+1] = byte(raw)
	}
	temps := []byte{0x00, 0xFA, 0x01, 0x04, 0x01, 0x0E, 0x01, 0x18} // 25.0 .. 28.0

	conn := &fakeConn{respond: registerResponder(map[byte][]byte{
		bmsproto.AddrCellVoltage: cells,
		bmsproto.AddrTemperature: temps,
	})}

	s := newTestSession(t, conn, Events{})
	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	got, err := s.ReadCellVoltages(0x02)
	if err != nil {
		t.Fatalf("ReadCellVoltages() error = %v", err)
	}
	if got[0] != 3.3 || got[15] != 3.315 {
		t.Errorf("cells = %v / %v, want 3.3 / 3.315", got[0], got[15])
	}

	zones, err := s.ReadTemperatures(0x02)
	if err != nil {
		t.Fatalf("ReadTemperatures() error = %v", err)
	}
	if zones != [bmsproto.TempZoneCount]float64{25.0, 26.0, 27.0, 28.0} {
		t.Errorf("zones = %v", zones)
	}
}

func TestConfigurationWrites(t *testing.T) {
	conn := &fakeConn{respond: registerResponder(map[byte][]byte{})}

	s := newTestSession(t, conn, Events{})
	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := s.SetNumSlaves(4); err != nil {
		t.Fatalf("SetNumSlaves() error = %v", err)
	}
	if got := s.NumSlaves(); got != 4 {
		t.Errorf("NumSlaves() = %d, want 4", got)
	}
	if err := s.SetNumCellsTopBMS(12); err != nil {
		t.Fatalf("SetNumCellsTopBMS() error = %v", err)
	}

	// Probe + two config writes on the wire, each a fixed-size command.
	if got := len(conn.written); got != 3 {
		t.Fatalf("wrote %d frames, want 3", got)
	}
	cells := conn.written[2]
	if cells[3] != bmsproto.AddrNumCells || cells[4] != 0x00 || cells[5] != 0x0C {
		t.Errorf("cell count frame = % X", cells)
	}
}

func TestBalancingOps(t *testing.T) {
	conn := &fakeConn{respond: registerResponder(map[byte][]byte{
		bmsproto.AddrBalancing:    {0x00, 0x01},
		bmsproto.AddrBalancingSeq: {0x00, 0x0F},
	})}

	s := newTestSession(t, conn, Events{})
	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := s.SetBalancing(0x02, true); err != nil {
		t.Fatalf("SetBalancing() error = %v", err)
	}
	enabled, err := s.ReadBalancingStatus(0x02)
	if err != nil {
		t.Fatalf("ReadBalancingStatus() error = %v", err)
	}
	if !enabled {
		t.Error("balancing reported off, want on")
	}

	if err := s.SetBalancingSequence(0x02, 0x000F); err != nil {
		t.Fatalf("SetBalancingSequence() error = %v", err)
	}
	state, err := s.ReadBalancingState(0x02)
	if err != nil {
		t.Fatalf("ReadBalancingState() error = %v", err)
	}
	if state != 0x000F {
		t.Errorf("state = 0x%04X, want 0x000F", state)
	}
}
