// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package session

// AutoDisconnect is the reason string passed to OnConnectionError when the
// health tracker tears the link down after too many consecutive command
// failures.
const AutoDisconnect = "AUTO_DISCONNECT"

// Events is the callback set a consumer registers with the session. All
// fields are optional. Callbacks fire on the goroutine that triggered the
// state change and must not call back into the session.
type Events struct {
	OnConnectionChanged func(connected bool)
	OnConnectionError   func(reason string)
	OnSnapshot          func(snap Snapshot)
}

func (e *Events) emitConnectionChanged(connected bool) {
	if e.OnConnectionChanged != nil {
		e.OnConnectionChanged(connected)
	}
}

func (e *Events) emitConnectionError(reason string) {
	if e.OnConnectionError != nil {
		e.OnConnectionError(reason)
	}
}

func (e *Events) emitSnapshot(snap Snapshot) {
	if e.OnSnapshot != nil {
		e.OnSnapshot(snap)
	}
}
