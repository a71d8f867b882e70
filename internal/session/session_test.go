// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package session

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/voltaic/cellscope/pkg/bmsproto"
)

// fakeConn scripts the device side of the link. Writes are recorded; a
// responder generates the reply bytes the next Read will return. A nil
// responder (or nil reply) leaves the bus silent so attempts time out.
type fakeConn struct {
	respond func(frame []byte) []byte

	written [][]byte
	rx      bytes.Buffer
	step    time.Duration
	resets  int
	closed  bool
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if c.rx.Len() == 0 {
		time.Sleep(c.step)
		return 0, nil
	}
	return c.rx.Read(p)
}

func (c *fakeConn) Write(p []byte) (int, error) {
	frame := append([]byte(nil), p...)
	c.written = append(c.written, frame)
	if c.respond != nil {
		if reply := c.respond(frame); reply != nil {
			c.rx.Write(reply)
		}
	}
	return len(p), nil
}

func (c *fakeConn) Close() error                         { c.closed = true; return nil }
func (c *fakeConn) ResetInputBuffer() error              { c.resets++; c.rx.Reset(); return nil }
func (c *fakeConn) SetReadTimeout(d time.Duration) error { c.step = d; return nil }

// echo replies to write commands with the identical frame, which is exactly
// the write response layout.
func echo(frame []byte) []byte {
	if len(frame) >= 3 && frame[2] == bmsproto.FuncWrite {
		return frame
	}
	return nil
}

// readReply assembles a read response frame carrying payload.
func readReply(deviceID byte, payload []byte) []byte {
	frame := []byte{bmsproto.FrameStart, deviceID, bmsproto.FuncRead, byte(len(payload) >> 8), byte(len(payload))}
	frame = append(frame, payload...)
	crc := bmsproto.Checksum(frame[1:])
	return append(frame, byte(crc), byte(crc>>8))
}

// newTestSession wires a session to conn with timings shrunk for tests.
func newTestSession(t *testing.T, conn *fakeConn, events Events) *Session {
	t.Helper()
	s := New(func(string) (Conn, error) { return conn, nil }, NopLogger{}, events)
	s.readTimeout = 20 * time.Millisecond
	s.responseDelay = 0
	s.pollStep = time.Millisecond
	s.retryBackoff = time.Millisecond
	s.maxAttempts = 2
	return s
}

func TestConnectProbe(t *testing.T) {
	conn := &fakeConn{respond: echo}

	var changes []bool
	s := newTestSession(t, conn, Events{
		OnConnectionChanged: func(c bool) { changes = append(changes, c) },
	})

	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !s.Connected() {
		t.Error("session not connected after probe")
	}
	if len(changes) != 1 || !changes[0] {
		t.Errorf("connection events = %v, want [true]", changes)
	}

	want := bmsproto.BuildWrite(bmsproto.DeviceMaster, bmsproto.AddrCommStart, bmsproto.CommStartWord)
	if len(conn.written) != 1 || !bytes.Equal(conn.written[0], want) {
		t.Errorf("probe frame = %v, want [% X]", conn.written, want)
	}
}

func TestConnectProbeSilence(t *testing.T) {
	conn := &fakeConn{} // no responder, every attempt times out

	s := newTestSession(t, conn, Events{})
	err := s.Connect("/dev/ttyUSB0")
	if err == nil {
		t.Fatal("Connect() succeeded against a silent bus")
	}
	if s.Connected() {
		t.Error("session connected after failed probe")
	}
	if !conn.closed {
		t.Error("transport left open after failed probe")
	}
	// Probe is 2 attempts at these settings.
	if len(conn.written) != 2 {
		t.Errorf("wrote %d frames, want 2", len(conn.written))
	}
}

func TestAlreadyConnected(t *testing.T) {
	conn := &fakeConn{respond: echo}
	s := newTestSession(t, conn, Events{})

	if err := s.Connect("a"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := s.Connect("b"); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
	}
}

func TestAutoDisconnectFiresOnce(t *testing.T) {
	conn := &fakeConn{respond: echo}

	var errorReasons []string
	var changes []bool
	s := newTestSession(t, conn, Events{
		OnConnectionChanged: func(c bool) { changes = append(changes, c) },
		OnConnectionError:   func(r string) { errorReasons = append(errorReasons, r) },
	})
	s.failureThreshold = 3

	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Go quiet: every subsequent command exhausts its retries.
	conn.respond = nil
	for i := 0; i < 3; i++ {
		if err := s.SetBalancing(bmsproto.DeviceMaster, true); err == nil {
			t.Fatalf("command %d succeeded against a silent bus", i)
		}
	}

	if s.Connected() {
		t.Error("session still connected past the failure threshold")
	}
	if len(errorReasons) != 1 || errorReasons[0] != AutoDisconnect {
		t.Errorf("error events = %v, want exactly one %q", errorReasons, AutoDisconnect)
	}

	// Further commands short-circuit without new events.
	if err := s.SetBalancing(bmsproto.DeviceMaster, true); !errors.Is(err, ErrNotConnected) {
		t.Errorf("post-disconnect command error = %v, want ErrNotConnected", err)
	}
	if len(errorReasons) != 1 {
		t.Errorf("error events after teardown = %v", errorReasons)
	}
	if want := []bool{true, false}; len(changes) != 2 || changes[0] != want[0] || changes[1] != want[1] {
		t.Errorf("connection events = %v, want %v", changes, want)
	}
	if s.stats.AutoDisconnects != 1 {
		t.Errorf("AutoDisconnects = %d, want 1", s.stats.AutoDisconnects)
	}
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	conn := &fakeConn{respond: echo}

	var errorReasons []string
	s := newTestSession(t, conn, Events{
		OnConnectionError: func(r string) { errorReasons = append(errorReasons, r) },
	})
	s.failureThreshold = 3

	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Two failures, one success, two more failures: never crosses 3.
	conn.respond = nil
	s.SetBalancing(bmsproto.DeviceMaster, true)
	s.SetBalancing(bmsproto.DeviceMaster, true)

	conn.respond = echo
	if err := s.SetBalancing(bmsproto.DeviceMaster, true); err != nil {
		t.Fatalf("recovery command error = %v", err)
	}
	if s.consecutiveFailures != 0 {
		t.Errorf("consecutiveFailures = %d after success, want 0", s.consecutiveFailures)
	}

	conn.respond = nil
	s.SetBalancing(bmsproto.DeviceMaster, true)
	s.SetBalancing(bmsproto.DeviceMaster, true)

	if !s.Connected() {
		t.Error("session disconnected despite counter reset")
	}
	if len(errorReasons) != 0 {
		t.Errorf("error events = %v, want none", errorReasons)
	}
}

func TestDisconnectSendsStop(t *testing.T) {
	conn := &fakeConn{respond: echo}
	s := newTestSession(t, conn, Events{})

	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	s.Disconnect()

	if !conn.closed {
		t.Error("transport left open after Disconnect")
	}
	want := bmsproto.BuildWrite(bmsproto.DeviceMaster, bmsproto.AddrCommStart, bmsproto.CommStopWord)
	last := conn.written[len(conn.written)-1]
	if !bytes.Equal(last, want) {
		t.Errorf("last frame = % X, want comm stop % X", last, want)
	}
}

func TestReadAllData(t *testing.T) {
	payload := make([]byte, bmsproto.CombinedReadBytes)
	// Pack voltage 48.254 V
	payload[0], payload[1] = 0xBB, 0x7E
	// Pack current -0.001 A (24-bit two's complement in 4 bytes)
	payload[2], payload[3], payload[4], payload[5] = 0x00, 0xFF, 0xFF, 0xFF
	// Cell 1 = 3.301 V
	payload[6], payload[7] = 0x0C, 0xE5
	// Zone 1 = 37.8 C
	payload[38], payload[39] = 0x01, 0x7A

	conn := &fakeConn{respond: func(frame []byte) []byte {
		if frame[2] == bmsproto.FuncWrite {
			return frame
		}
		return readReply(frame[1], payload)
	}}

	s := newTestSession(t, conn, Events{})
	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	got, err := s.ReadAllData(bmsproto.DeviceMaster)
	if err != nil {
		t.Fatalf("ReadAllData() error = %v", err)
	}
	if got.PackVoltage != 48.254 {
		t.Errorf("PackVoltage = %v, want 48.254", got.PackVoltage)
	}
	if got.PackCurrent != -0.001 {
		t.Errorf("PackCurrent = %v, want -0.001", got.PackCurrent)
	}
	if got.CellVoltages[0] != 3.301 {
		t.Errorf("CellVoltages[0] = %v, want 3.301", got.CellVoltages[0])
	}
	if got.Temperatures[0] != 37.8 {
		t.Errorf("Temperatures[0] = %v, want 37.8", got.Temperatures[0])
	}
}

func TestRetryRecoversFromCorruptFrame(t *testing.T) {
	attempts := 0
	conn := &fakeConn{}
	conn.respond = func(frame []byte) []byte {
		if frame[2] != bmsproto.FuncWrite {
			return nil
		}
		attempts++
		if attempts == 1 {
			bad := append([]byte(nil), frame...)
			bad[5] ^= 0xFF // breaks the CRC
			return bad
		}
		return frame
	}

	s := newTestSession(t, conn, Events{})
	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if s.stats.CRCErrors != 1 {
		t.Errorf("CRCErrors = %d, want 1", s.stats.CRCErrors)
	}
	if s.stats.Retries != 1 {
		t.Errorf("Retries = %d, want 1", s.stats.Retries)
	}
}

func TestPingDoesNotAffectHealth(t *testing.T) {
	conn := &fakeConn{respond: echo}
	s := newTestSession(t, conn, Events{})
	s.failureThreshold = 1

	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	conn.respond = echo // still answers writes only, reads stay silent
	if s.Ping(0x24) {
		t.Error("Ping() answered for an absent device")
	}
	if !s.Connected() {
		t.Error("failed ping tore the link down")
	}
	if s.consecutiveFailures != 0 {
		t.Errorf("consecutiveFailures = %d after ping, want 0", s.consecutiveFailures)
	}
}

func TestSendDebugCommand(t *testing.T) {
	conn := &fakeConn{respond: func(frame []byte) []byte {
		if len(frame) >= 2 && frame[1] == bmsproto.FuncDebug {
			return []byte{bmsproto.FrameStart, bmsproto.FuncDebug, 0x4F, 0x4B, bmsproto.FrameEnd}
		}
		return echo(frame)
	}}

	s := newTestSession(t, conn, Events{})
	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	got, err := s.SendDebugCommand([]byte{0xDE, 0xAD})
	if err != nil {
		t.Fatalf("SendDebugCommand() error = %v", err)
	}
	if !bytes.Equal(got, []byte{0x4F, 0x4B}) {
		t.Errorf("payload = % X, want 4F 4B", got)
	}
}

func TestSetNumSlavesValidation(t *testing.T) {
	conn := &fakeConn{respond: echo}
	s := newTestSession(t, conn, Events{})
	if err := s.Connect("/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := s.SetNumSlaves(61); !errors.Is(err, bmsproto.ErrInvalidArgument) {
		t.Errorf("SetNumSlaves(61) error = %v, want ErrInvalidArgument", err)
	}
	if err := s.SetNumSlaves(4); err != nil {
		t.Fatalf("SetNumSlaves(4) error = %v", err)
	}
	if s.NumSlaves() != 4 {
		t.Errorf("NumSlaves() = %d, want 4", s.NumSlaves())
	}

	if err := s.SetNumCellsTopBMS(17); !errors.Is(err, bmsproto.ErrInvalidArgument) {
		t.Errorf("SetNumCellsTopBMS(17) error = %v, want ErrInvalidArgument", err)
	}
}
