// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package bmsproto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrIncompleteFrame means more bytes are needed; the caller should keep
	// reading and try again.
	ErrIncompleteFrame = errors.New("incomplete frame")

	// ErrInvalidFrame means the bytes cannot become a valid frame no matter
	// what arrives next; the caller should discard the buffer.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrCRCMismatch is an ErrInvalidFrame whose checksum field disagrees
	// with the frame contents.
	ErrCRCMismatch = fmt.Errorf("%w: crc mismatch", ErrInvalidFrame)
)

// Response is a decoded read or write reply.
type Response struct {
	DeviceID byte
	Function byte

	// Write replies echo the register address and the data word written.
	Address byte
	Echo    uint16

	// Read replies carry the register payload.
	Payload []byte
}

// ParseResponse decodes a read (0x03) or write (0x06) reply. It returns
// ErrIncompleteFrame when raw is a valid prefix that needs more bytes, and an
// error wrapping ErrInvalidFrame when raw can never become a valid frame.
func ParseResponse(raw []byte) (*Response, error) {
	if len(raw) == 0 {
		return nil, ErrIncompleteFrame
	}
	if raw[0] != FrameStart {
		return nil, fmt.Errorf("%w: bad start byte 0x%02X", ErrInvalidFrame, raw[0])
	}
	if len(raw) < MinFrameSize {
		return nil, ErrIncompleteFrame
	}

	resp := &Response{DeviceID: raw[1], Function: raw[2]}

	switch resp.Function {
	case FuncRead:
		// START, id, func, byte count (2 BE), payload, CRC (2 LE)
		byteCount := int(binary.BigEndian.Uint16(raw[3:5]))
		total := ReadHeaderSize + byteCount + CRCSize
		if len(raw) < total {
			return nil, ErrIncompleteFrame
		}
		raw = raw[:total]
		if err := verifyChecksum(raw); err != nil {
			return nil, err
		}
		resp.Payload = append([]byte(nil), raw[ReadHeaderSize:ReadHeaderSize+byteCount]...)
		return resp, nil

	case FuncWrite:
		// START, id, func, address, data (2 BE), CRC (2 LE)
		if len(raw) < WriteResponseSize {
			return nil, ErrIncompleteFrame
		}
		raw = raw[:WriteResponseSize]
		if err := verifyChecksum(raw); err != nil {
			return nil, err
		}
		resp.Address = raw[3]
		resp.Echo = binary.BigEndian.Uint16(raw[4:6])
		return resp, nil

	default:
		return nil, fmt.Errorf("%w: unexpected function 0x%02X", ErrInvalidFrame, resp.Function)
	}
}

// ParseDebugResponse extracts the payload of a debug (0x0B) reply. Debug
// replies carry no CRC on the return path and are terminated by the END
// marker.
func ParseDebugResponse(raw []byte) ([]byte, error) {
	if len(raw) < 4 {
		return nil, ErrIncompleteFrame
	}
	if raw[0] != FrameStart {
		return nil, fmt.Errorf("%w: bad start byte 0x%02X", ErrInvalidFrame, raw[0])
	}
	if raw[1] != FuncDebug {
		return nil, fmt.Errorf("%w: unexpected function 0x%02X", ErrInvalidFrame, raw[1])
	}
	for i := 2; i < len(raw); i++ {
		if raw[i] == FrameEnd {
			if i == 2 {
				return nil, fmt.Errorf("%w: empty debug payload", ErrInvalidFrame)
			}
			return append([]byte(nil), raw[2:i]...), nil
		}
	}
	return nil, ErrIncompleteFrame
}

// FrameComplete reports whether buf holds at least one structurally complete
// reply for the given request function code. It never validates the CRC; it
// exists so a read loop can stop accumulating bytes.
func FrameComplete(buf []byte, function byte) bool {
	if len(buf) == 0 || buf[0] != FrameStart {
		return false
	}
	switch function {
	case FuncRead:
		if len(buf) < ReadHeaderSize {
			return false
		}
		byteCount := int(binary.BigEndian.Uint16(buf[3:5]))
		return len(buf) >= ReadHeaderSize+byteCount+CRCSize
	case FuncWrite:
		return len(buf) >= WriteResponseSize
	case FuncDebug:
		for i := 2; i < len(buf); i++ {
			if buf[i] == FrameEnd {
				return true
			}
		}
		return false
	}
	return false
}

// verifyChecksum checks the trailing little-endian CRC against the span from
// device id to the byte before the CRC.
func verifyChecksum(frame []byte) error {
	got := binary.LittleEndian.Uint16(frame[len(frame)-CRCSize:])
	want := Checksum(frame[1 : len(frame)-CRCSize])
	if got != want {
		return fmt.Errorf("%w: got 0x%04X want 0x%04X", ErrCRCMismatch, got, want)
	}
	return nil
}
