// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package bmsproto

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Statistics tracks link health counters and error rates. Counters are
// mutated by the session goroutine and read by UI goroutines, so every
// method locks; concurrent readers should take a Snapshot.
type Statistics struct {
	mu sync.Mutex

	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	CommandsSent    uint64
	Responses       uint64
	Retries         uint64
	CRCErrors       uint64
	InvalidFrames   uint64
	Timeouts        uint64
	Failures        uint64
	AutoDisconnects uint64
	AnomalousValues uint64

	// Rates (calculated)
	CommandRate float64 // commands/sec
	ErrorRate   float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordCommand counts one command written to the bus
func (s *Statistics) RecordCommand() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CommandsSent++
	s.LastUpdateTime = time.Now()
}

// RecordResponse counts one valid response
func (s *Statistics) RecordResponse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses++
	s.LastUpdateTime = time.Now()
}

// RecordRetry counts one retried attempt
func (s *Statistics) RecordRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Retries++
}

// RecordTimeout counts one attempt that produced no complete frame
func (s *Statistics) RecordTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Timeouts++
}

// RecordParseError classifies a parse failure as a CRC error or a framing
// error
func (s *Statistics) RecordParseError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errors.Is(err, ErrCRCMismatch) {
		s.CRCErrors++
		return
	}
	s.InvalidFrames++
}

// RecordFailure counts one command that exhausted all retries
func (s *Statistics) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failures++
}

// RecordAutoDisconnect counts one health-triggered disconnect
func (s *Statistics) RecordAutoDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AutoDisconnects++
}

// RecordAnomalies counts implausible readings flagged by ValidateTelemetry
func (s *Statistics) RecordAnomalies(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AnomalousValues += uint64(n)
}

// CalculateRates calculates command and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRatesLocked()
}

func (s *Statistics) calculateRatesLocked() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.CommandRate = float64(s.CommandsSent) / elapsed
		errorCount := s.CRCErrors + s.InvalidFrames + s.Timeouts + s.Failures
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// Snapshot returns a consistent copy of the counters with rates refreshed.
func (s *Statistics) Snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRatesLocked()
	return Statistics{
		StartTime:       s.StartTime,
		LastUpdateTime:  s.LastUpdateTime,
		CommandsSent:    s.CommandsSent,
		Responses:       s.Responses,
		Retries:         s.Retries,
		CRCErrors:       s.CRCErrors,
		InvalidFrames:   s.InvalidFrames,
		Timeouts:        s.Timeouts,
		Failures:        s.Failures,
		AutoDisconnects: s.AutoDisconnects,
		AnomalousValues: s.AnomalousValues,
		CommandRate:     s.CommandRate,
		ErrorRate:       s.ErrorRate,
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var okPercent float64
	if snap.CommandsSent > 0 {
		okPercent = float64(snap.Responses) * 100.0 / float64(snap.CommandsSent)
	}

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Link statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Commands sent:    %8d\n", snap.CommandsSent)
	result += fmt.Sprintf("Responses:        %8d (%.1f%%)\n", snap.Responses, okPercent)

	if snap.Retries > 0 {
		result += fmt.Sprintf("Retries:          %8d\n", snap.Retries)
	}
	if snap.CRCErrors > 0 {
		result += fmt.Sprintf("CRC errors:       %8d\n", snap.CRCErrors)
	}
	if snap.InvalidFrames > 0 {
		result += fmt.Sprintf("Invalid frames:   %8d\n", snap.InvalidFrames)
	}
	if snap.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:         %8d\n", snap.Timeouts)
	}
	if snap.Failures > 0 {
		result += fmt.Sprintf("Failed commands:  %8d\n", snap.Failures)
	}
	if snap.AutoDisconnects > 0 {
		result += fmt.Sprintf("Auto disconnects: %8d\n", snap.AutoDisconnects)
	}
	if snap.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous values: %8d\n", snap.AnomalousValues)
	}

	result += fmt.Sprintf("Command rate:     %10.1f/s\n", snap.CommandRate)
	result += fmt.Sprintf("Error rate:       %10.1f/s\n", snap.ErrorRate)

	return result
}

// Reset zeroes all counters and restarts the rate window
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.CommandsSent = 0
	s.Responses = 0
	s.Retries = 0
	s.CRCErrors = 0
	s.InvalidFrames = 0
	s.Timeouts = 0
	s.Failures = 0
	s.AutoDisconnects = 0
	s.AnomalousValues = 0
	s.CommandRate = 0
	s.ErrorRate = 0
}
