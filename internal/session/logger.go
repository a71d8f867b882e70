// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package session

import "log"

// Log levels
const (
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Logger is the logging port injected into the session. Bms carries
// bus-level traffic (frames, retries, CRC failures); App carries
// application-level events (connect, disconnect, configuration).
type Logger interface {
	Bms(level, format string, args ...interface{})
	App(level, format string, args ...interface{})
}

// StdLogger writes both streams to a stdlib logger, tagged by origin.
type StdLogger struct {
	L *log.Logger
	// Verbose enables the Bms stream; bus traffic is noisy at poll rate.
	Verbose bool
}

func (s *StdLogger) Bms(level, format string, args ...interface{}) {
	if !s.Verbose && level == LevelDebug {
		return
	}
	s.L.Printf("[bms] "+level+": "+format, args...)
}

func (s *StdLogger) App(level, format string, args ...interface{}) {
	s.L.Printf("[app] "+level+": "+format, args...)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Bms(level, format string, args ...interface{}) {}
func (NopLogger) App(level, format string, args ...interface{}) {}
