// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package session

import (
	"encoding/binary"
	"fmt"

	"github.com/voltaic/cellscope/pkg/bmsproto"
)

// SetNumSlaves writes the configured slave count to the master. The register
// accepts 0-60 but only slaves 1-35 are addressable, so the poller caps at
// MaxSlaves.
func (s *Session) SetNumSlaves(n int) error {
	if n < 0 || n > bmsproto.MaxConfigSlaves {
		return fmt.Errorf("%w: num slaves %d, must be 0-%d", bmsproto.ErrInvalidArgument, n, bmsproto.MaxConfigSlaves)
	}

	_, err := s.send(
		bmsproto.BuildWrite(bmsproto.DeviceMaster, bmsproto.AddrNumSlaves, uint16(n)),
		bmsproto.FuncWrite)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.numSlaves = n
	s.mu.Unlock()
	s.log.App(LevelInfo, "num slaves set to %d", n)
	return nil
}

// SetNumCellsTopBMS writes the cell count of the top (master) BMS.
func (s *Session) SetNumCellsTopBMS(n int) error {
	if n < 0 || n > bmsproto.MaxCellsTopBMS {
		return fmt.Errorf("%w: num cells %d, must be 0-%d", bmsproto.ErrInvalidArgument, n, bmsproto.MaxCellsTopBMS)
	}

	_, err := s.send(
		bmsproto.BuildWrite(bmsproto.DeviceMaster, bmsproto.AddrNumCells, uint16(n)),
		bmsproto.FuncWrite)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.numCells = n
	s.mu.Unlock()
	s.log.App(LevelInfo, "num cells (top BMS) set to %d", n)
	return nil
}

// ReadAllData performs the combined 23-word telemetry read: pack voltage,
// pack current, 16 cell voltages and 4 temperature zones in one exchange.
func (s *Session) ReadAllData(deviceID byte) (*Telemetry, error) {
	resp, err := s.send(
		bmsproto.BuildRead(deviceID, bmsproto.AddrPackVoltage, bmsproto.CombinedReadWords),
		bmsproto.FuncRead)
	if err != nil {
		return nil, err
	}
	if len(resp.Payload) < bmsproto.CombinedReadBytes {
		return nil, fmt.Errorf("%w: combined read returned %d bytes, want %d",
			bmsproto.ErrInvalidFrame, len(resp.Payload), bmsproto.CombinedReadBytes)
	}

	data := resp.Payload
	t := &Telemetry{
		PackVoltage: bmsproto.VoltageFromRaw(binary.BigEndian.Uint16(data[0:2])),
		PackCurrent: bmsproto.CurrentFromRaw(binary.BigEndian.Uint32(data[2:6])),
	}
	for i := 0; i < bmsproto.CellCount; i++ {
		off := 6 + 2*i
		t.CellVoltages[i] = bmsproto.VoltageFromRaw(binary.BigEndian.Uint16(data[off : off+2]))
	}
	for i := 0; i < bmsproto.TempZoneCount; i++ {
		off := 38 + 2*i
		t.Temperatures[i] = bmsproto.TemperatureFromRaw(binary.BigEndian.Uint16(data[off : off+2]))
	}

	if anomalies := bmsproto.ValidateTelemetry(t.PackVoltage, t.PackCurrent, t.CellVoltages[:], t.Temperatures[:]); len(anomalies) > 0 {
		s.stats.RecordAnomalies(len(anomalies))
		for _, a := range anomalies {
			s.log.Bms(LevelWarning, "dev 0x%02X: %s", deviceID, a.Message)
		}
	}

	return t, nil
}

// ReadPackVoltage reads the single pack voltage register. Fallback path for
// firmware that predates the combined read.
func (s *Session) ReadPackVoltage(deviceID byte) (float64, error) {
	raw, err := s.readWord(deviceID, bmsproto.AddrPackVoltage)
	if err != nil {
		return 0, err
	}
	return bmsproto.VoltageFromRaw(raw), nil
}

// ReadPackCurrent reads the 2-word pack current register. Fallback path.
func (s *Session) ReadPackCurrent(deviceID byte) (float64, error) {
	resp, err := s.send(
		bmsproto.BuildRead(deviceID, bmsproto.AddrPackCurrent, 2),
		bmsproto.FuncRead)
	if err != nil {
		return 0, err
	}
	if len(resp.Payload) < 4 {
		return 0, fmt.Errorf("%w: current read returned %d bytes", bmsproto.ErrInvalidFrame, len(resp.Payload))
	}
	return bmsproto.CurrentFromRaw(binary.BigEndian.Uint32(resp.Payload[0:4])), nil
}

// ReadCellVoltages reads all 16 cell voltage words. Fallback path.
func (s *Session) ReadCellVoltages(deviceID byte) ([bmsproto.CellCount]float64, error) {
	var cells [bmsproto.CellCount]float64

	resp, err := s.send(
		bmsproto.BuildRead(deviceID, bmsproto.AddrCellVoltage, bmsproto.CellCount),
		bmsproto.FuncRead)
	if err != nil {
		return cells, err
	}
	if len(resp.Payload) < 2*bmsproto.CellCount {
		return cells, fmt.Errorf("%w: cell read returned %d bytes", bmsproto.ErrInvalidFrame, len(resp.Payload))
	}
	for i := range cells {
		cells[i] = bmsproto.VoltageFromRaw(binary.BigEndian.Uint16(resp.Payload[2*i : 2*i+2]))
	}
	return cells, nil
}

// ReadTemperatures reads the 4 temperature zone words. Fallback path.
func (s *Session) ReadTemperatures(deviceID byte) ([bmsproto.TempZoneCount]float64, error) {
	var zones [bmsproto.TempZoneCount]float64

	resp, err := s.send(
		bmsproto.BuildRead(deviceID, bmsproto.AddrTemperature, bmsproto.TempZoneCount),
		bmsproto.FuncRead)
	if err != nil {
		return zones, err
	}
	if len(resp.Payload) < 2*bmsproto.TempZoneCount {
		return zones, fmt.Errorf("%w: temperature read returned %d bytes", bmsproto.ErrInvalidFrame, len(resp.Payload))
	}
	for i := range zones {
		zones[i] = bmsproto.TemperatureFromRaw(binary.BigEndian.Uint16(resp.Payload[2*i : 2*i+2]))
	}
	return zones, nil
}

// ReadDieTemperature1 reads the first die temperature sensor.
func (s *Session) ReadDieTemperature1(deviceID byte) (float64, error) {
	raw, err := s.readWord(deviceID, bmsproto.AddrDieTemp1)
	if err != nil {
		return 0, err
	}
	return bmsproto.DieTemperatureFromRaw(raw), nil
}

// ReadDieTemperature2 reads the second die temperature sensor.
func (s *Session) ReadDieTemperature2(deviceID byte) (float64, error) {
	raw, err := s.readWord(deviceID, bmsproto.AddrDieTemp2)
	if err != nil {
		return 0, err
	}
	return bmsproto.DieTemperatureFromRaw(raw), nil
}

// SetBalancing enables or disables cell balancing on one device.
func (s *Session) SetBalancing(deviceID byte, enable bool) error {
	var word uint16
	if enable {
		word = 0x0001
	}
	_, err := s.send(
		bmsproto.BuildWrite(deviceID, bmsproto.AddrBalancing, word),
		bmsproto.FuncWrite)
	if err == nil {
		s.log.App(LevelInfo, "balancing enable=%v for dev 0x%02X", enable, deviceID)
	}
	return err
}

// ReadBalancingStatus reads whether balancing is enabled on one device.
func (s *Session) ReadBalancingStatus(deviceID byte) (bool, error) {
	raw, err := s.readWord(deviceID, bmsproto.AddrBalancing)
	if err != nil {
		return false, err
	}
	return raw == 0x0001, nil
}

// SetBalancingSequence writes the per-cell balancing bit mask (bit 0 = cell
// 1 through bit 15 = cell 16).
func (s *Session) SetBalancingSequence(deviceID byte, mask uint16) error {
	_, err := s.send(
		bmsproto.BuildWrite(deviceID, bmsproto.AddrBalancingSeq, mask),
		bmsproto.FuncWrite)
	if err == nil {
		s.log.App(LevelInfo, "balancing sequence 0x%04X for dev 0x%02X", mask, deviceID)
	}
	return err
}

// ReadBalancingState reads the live balancing bit mask. The state is read
// back through the sequence register.
func (s *Session) ReadBalancingState(deviceID byte) (uint16, error) {
	return s.readWord(deviceID, bmsproto.AddrBalancingSeq)
}

// Ping probes one device id with a 1-word read and reports whether anything
// answered. Used by bus scanning; a failed ping does not count against link
// health.
func (s *Session) Ping(deviceID byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return false
	}
	_, err := s.sendLockedHealth(
		bmsproto.BuildRead(deviceID, bmsproto.AddrPackVoltage, 1),
		bmsproto.FuncRead, false)
	return err == nil
}

// SendDebugCommand passes raw command bytes through to the BMS IC and
// returns the raw reply payload. Debug traffic is single shot and does not
// count against link health.
func (s *Session) SendDebugCommand(command []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, ErrNotConnected
	}

	s.stats.RecordCommand()
	frame := bmsproto.BuildDebug(command)
	if err := s.conn.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("flush input: %w", err)
	}
	if _, err := s.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	raw, err := s.readFrameLocked(bmsproto.FuncDebug)
	if err != nil {
		return nil, err
	}
	payload, err := bmsproto.ParseDebugResponse(raw)
	if err != nil {
		s.stats.RecordParseError(err)
		return nil, err
	}
	s.stats.RecordResponse()
	return payload, nil
}

// readWord reads a single 16-bit register.
func (s *Session) readWord(deviceID, address byte) (uint16, error) {
	resp, err := s.send(bmsproto.BuildRead(deviceID, address, 1), bmsproto.FuncRead)
	if err != nil {
		return 0, err
	}
	if len(resp.Payload) < 2 {
		return 0, fmt.Errorf("%w: word read returned %d bytes", bmsproto.ErrInvalidFrame, len(resp.Payload))
	}
	return binary.BigEndian.Uint16(resp.Payload[0:2]), nil
}
