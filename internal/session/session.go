// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voltaic/cellscope/pkg/bmsproto"
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrTimeout          = errors.New("response timeout")
	ErrCommandFailed    = errors.New("command failed after retries")
)

// Session drives one half-duplex BMS link. Every public method serializes
// behind one mutex: the bus cannot interleave commands, so neither do we.
type Session struct {
	mu     sync.Mutex
	dial   Dialer
	log    Logger
	events Events
	stats  *bmsproto.Statistics

	conn      Conn
	connected bool

	numSlaves int
	numCells  int

	consecutiveFailures int

	// Link tuning. Tests shrink these to keep the fake bus fast.
	readTimeout      time.Duration // per attempt
	responseDelay    time.Duration // settle time between write and first read
	pollStep         time.Duration // read granularity inside an attempt
	retryBackoff     time.Duration
	maxAttempts      int
	failureThreshold int // consecutive failed commands before auto disconnect
}

// New creates a session over the given dialer. events may be zero-valued.
func New(dial Dialer, log Logger, events Events) *Session {
	if log == nil {
		log = NopLogger{}
	}
	return &Session{
		dial:   dial,
		log:    log,
		events: events,
		stats:  bmsproto.NewStatistics(),

		readTimeout:      500 * time.Millisecond,
		responseDelay:    50 * time.Millisecond,
		pollStep:         10 * time.Millisecond,
		retryBackoff:     100 * time.Millisecond,
		maxAttempts:      3,
		failureThreshold: 5,
	}
}

// Connect dials the target and probes the master by writing the
// communication start word. The link is connected only if the probe echoes
// back.
func (s *Session) Connect(target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return ErrAlreadyConnected
	}

	conn, err := s.dial(target)
	if err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	s.conn = conn
	s.connected = true
	s.consecutiveFailures = 0

	resp, err := s.sendLocked(
		bmsproto.BuildWrite(bmsproto.DeviceMaster, bmsproto.AddrCommStart, bmsproto.CommStartWord),
		bmsproto.FuncWrite)
	if err != nil {
		s.connected = false
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("probe %s: %w", target, err)
	}
	if resp.Address != bmsproto.AddrCommStart || resp.Echo != bmsproto.CommStartWord {
		s.connected = false
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("probe %s: unexpected echo %s=0x%04X",
			target, bmsproto.AddressName(resp.Address), resp.Echo)
	}

	s.log.App(LevelInfo, "connected to %s", target)
	s.events.emitConnectionChanged(true)
	return nil
}

// Disconnect sends the communication stop word (best effort, one attempt)
// and closes the transport.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectLocked(true)
}

// Connected reports link state.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Stats returns the shared link statistics tracker.
func (s *Session) Stats() *bmsproto.Statistics {
	return s.stats
}

// NumSlaves returns the configured slave count.
func (s *Session) NumSlaves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numSlaves
}

// send serializes one command against the bus.
func (s *Session) send(frame []byte, function byte) (*bmsproto.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(frame, function)
}

func (s *Session) sendLocked(frame []byte, function byte) (*bmsproto.Response, error) {
	return s.sendLockedHealth(frame, function, true)
}

// sendLockedHealth runs the retry loop. affectHealth is false for probes
// that are expected to fail, like scanning for absent devices.
func (s *Session) sendLockedHealth(frame []byte, function byte, affectHealth bool) (*bmsproto.Response, error) {
	if !s.connected {
		return nil, ErrNotConnected
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			s.stats.RecordRetry()
			time.Sleep(s.retryBackoff)
		}

		resp, err := s.attemptLocked(frame, function)
		if err == nil {
			if affectHealth {
				s.consecutiveFailures = 0
			}
			s.stats.RecordResponse()
			return resp, nil
		}
		lastErr = err
		s.log.Bms(LevelWarning, "attempt %d/%d failed for [% X]: %v",
			attempt+1, s.maxAttempts, frame, err)
	}

	s.stats.RecordFailure()
	if affectHealth {
		s.commandFailedLocked()
	}
	return nil, fmt.Errorf("%w: %v", ErrCommandFailed, lastErr)
}

// attemptLocked performs one write/read exchange.
func (s *Session) attemptLocked(frame []byte, function byte) (*bmsproto.Response, error) {
	s.stats.RecordCommand()

	if err := s.conn.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("flush input: %w", err)
	}
	if _, err := s.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	time.Sleep(s.responseDelay)

	raw, err := s.readFrameLocked(function)
	if err != nil {
		return nil, err
	}

	resp, err := bmsproto.ParseResponse(raw)
	if err != nil {
		s.stats.RecordParseError(err)
		return nil, err
	}
	s.log.Bms(LevelDebug, "rx %s", bmsproto.FormatResponse(resp))
	return resp, nil
}

// readFrameLocked accumulates bytes until a structurally complete reply for
// the given function code arrives or the attempt deadline passes. The
// transport returns (0, nil) when a read interval elapses without data.
func (s *Session) readFrameLocked(function byte) ([]byte, error) {
	if err := s.conn.SetReadTimeout(s.pollStep); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	deadline := time.Now().Add(s.readTimeout)
	buf := make([]byte, 0, 64)
	chunk := make([]byte, 256)
	for time.Now().Before(deadline) {
		n, err := s.conn.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			continue
		}
		buf = append(buf, chunk[:n]...)
		if bmsproto.FrameComplete(buf, function) {
			return buf, nil
		}
	}

	s.stats.RecordTimeout()
	if len(buf) > 0 {
		return nil, fmt.Errorf("%w: partial frame [% X]", ErrTimeout, buf)
	}
	return nil, ErrTimeout
}

// commandFailedLocked advances the health tracker. Crossing the threshold
// tears the link down and reports AUTO_DISCONNECT exactly once per episode:
// once disconnected, further commands short-circuit on ErrNotConnected and
// never reach this path again.
func (s *Session) commandFailedLocked() {
	s.consecutiveFailures++
	if s.consecutiveFailures < s.failureThreshold || !s.connected {
		return
	}

	s.stats.RecordAutoDisconnect()
	s.log.App(LevelError, "link unhealthy after %d consecutive command failures, disconnecting",
		s.consecutiveFailures)
	s.disconnectLocked(false)
	s.events.emitConnectionError(AutoDisconnect)
}

// disconnectLocked closes the transport. When sendStop is set the
// communication stop word goes out first as a single unretried write; a bus
// that is already dead must not delay teardown.
func (s *Session) disconnectLocked(sendStop bool) {
	if s.conn == nil {
		return
	}

	if sendStop && s.connected {
		frame := bmsproto.BuildWrite(bmsproto.DeviceMaster, bmsproto.AddrCommStart, bmsproto.CommStopWord)
		s.conn.ResetInputBuffer()
		if _, err := s.conn.Write(frame); err != nil {
			s.log.Bms(LevelWarning, "comm stop write failed: %v", err)
		}
	}

	s.conn.Close()
	s.conn = nil

	was := s.connected
	s.connected = false
	if was {
		s.log.App(LevelInfo, "disconnected")
		s.events.emitConnectionChanged(false)
	}
}
