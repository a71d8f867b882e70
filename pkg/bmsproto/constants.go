// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

// Package bmsproto implements the proprietary Modbus-RTU-like protocol spoken
// by the Voltaic battery management stack over a half-duplex serial bus.
//
// The package provides frame construction, CRC validation, response parsing,
// register-to-physical-unit conversion, and device addressing. It is pure:
// no I/O happens here.
package bmsproto

// Frame markers
const (
	FrameStart = 0x2A // '*'
	FrameEnd   = 0x24 // '$', debug frames only
)

// Function codes
const (
	FuncRead  = 0x03
	FuncWrite = 0x06
	FuncDebug = 0x0B
)

// Device ids. The master is always 0x01; slave N (1-based) answers at N+1.
const (
	DeviceMaster = 0x01
	MaxSlaves    = 35
)

// Register addresses (byte-addressed, BMS-defined)
const (
	AddrCommStart      = 0x01
	AddrNumSlaves      = 0x02
	AddrNumCells       = 0x03
	AddrPackVoltage    = 0x04
	AddrPackCurrent    = 0x05
	AddrCellVoltage    = 0x06
	AddrTemperature    = 0x07
	AddrBalancing      = 0x08
	AddrBalancingSeq   = 0x09
	AddrBalancingState = 0x0A // live state reads back through AddrBalancingSeq
	AddrDieTemp1       = 0x0C // protocol version 0.3
	AddrDieTemp2       = 0x0D // protocol version 0.3
)

// Control words written to AddrCommStart
const (
	CommStartWord = 0xAAAA
	CommStopWord  = 0xA5A5
)

// CombinedReadWords is the word count of the combined telemetry read at
// AddrPackVoltage (protocol version 0.4): pack voltage (1 word) + current
// (2 words) + 16 cell voltages + 4 temperature zones = 23 words.
const CombinedReadWords = 0x0017

// Telemetry geometry
const (
	CellCount         = 16
	TempZoneCount     = 4
	CombinedReadBytes = 2 * CombinedReadWords // 46
)

// Frame geometry
const (
	MinFrameSize      = 6 // START + id + func + 2 shortest fields + CRC low byte
	CommandSize       = 8 // read and write requests are fixed 8 bytes
	WriteResponseSize = 8
	ReadHeaderSize    = 5 // START + id + func + 2-byte byte count
	CRCSize           = 2
)

// Configuration limits accepted by the master
const (
	MaxConfigSlaves = 0x3C // register accepts 0-60; only 1-35 are pollable
	MaxCellsTopBMS  = 0x10
)
