// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

// Package session owns the byte transport to the BMS stack: connect/probe,
// strict one-in-flight command serialization, retry and health tracking,
// typed register operations, and the polling orchestrator that turns bus
// reads into snapshots.
package session

import (
	"io"
	"time"
)

// Conn is the byte transport the session drives. go.bug.st/serial ports
// satisfy it natively; the WebSocket bridge wraps its socket to match.
// Read must honor SetReadTimeout by returning (0, nil) when no bytes arrive
// in time.
type Conn interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(d time.Duration) error
}

// Dialer opens a Conn to the named port or endpoint.
type Dialer func(target string) (Conn, error)
