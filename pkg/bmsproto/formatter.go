// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package bmsproto

import (
	"fmt"
	"strings"
)

// FunctionName returns a human-readable name for a function code
func FunctionName(function byte) string {
	switch function {
	case FuncRead:
		return "READ"
	case FuncWrite:
		return "WRITE"
	case FuncDebug:
		return "DEBUG"
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", function)
}

// AddressName returns a human-readable name for a register address
func AddressName(address byte) string {
	switch address {
	case AddrCommStart:
		return "COMM_CTRL"
	case AddrNumSlaves:
		return "NUM_SLAVES"
	case AddrNumCells:
		return "NUM_CELLS"
	case AddrPackVoltage:
		return "PACK_VOLTAGE"
	case AddrPackCurrent:
		return "PACK_CURRENT"
	case AddrCellVoltage:
		return "CELL_VOLTAGE"
	case AddrTemperature:
		return "TEMPERATURE"
	case AddrBalancing:
		return "BALANCING"
	case AddrBalancingSeq:
		return "BALANCING_SEQ"
	case AddrBalancingState:
		return "BALANCING_STATE"
	case AddrDieTemp1:
		return "DIE_TEMP_1"
	case AddrDieTemp2:
		return "DIE_TEMP_2"
	}
	return fmt.Sprintf("ADDR_0x%02X", address)
}

// FormatFrame renders a frame as space-separated hex bytes
func FormatFrame(frame []byte) string {
	parts := make([]string, len(frame))
	for i, b := range frame {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// FormatResponse renders a one-line summary of a decoded response
func FormatResponse(r *Response) string {
	switch r.Function {
	case FuncRead:
		return fmt.Sprintf("dev 0x%02X %s %d bytes [%s]",
			r.DeviceID, FunctionName(r.Function), len(r.Payload), FormatFrame(r.Payload))
	case FuncWrite:
		return fmt.Sprintf("dev 0x%02X %s %s=0x%04X",
			r.DeviceID, FunctionName(r.Function), AddressName(r.Address), r.Echo)
	}
	return fmt.Sprintf("dev 0x%02X %s", r.DeviceID, FunctionName(r.Function))
}
