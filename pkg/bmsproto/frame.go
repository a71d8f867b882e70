// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package bmsproto

// BuildRead constructs a read request (function 0x03) for wordCount words
// starting at address. The CRC covers device id through word count and is
// appended low byte first.
func BuildRead(deviceID, address byte, wordCount uint16) []byte {
	frame := []byte{
		FrameStart,
		deviceID,
		FuncRead,
		address,
		byte(wordCount >> 8),
		byte(wordCount),
	}
	return appendChecksum(frame, Checksum(frame[1:]))
}

// BuildWrite constructs a write request (function 0x06) setting the 16-bit
// register at address to data.
func BuildWrite(deviceID, address byte, data uint16) []byte {
	frame := []byte{
		FrameStart,
		deviceID,
		FuncWrite,
		address,
		byte(data >> 8),
		byte(data),
	}
	return appendChecksum(frame, Checksum(frame[1:]))
}

// BuildDebug constructs a pass-through command for the BMS IC (function
// 0x0B). Unlike read/write frames the CRC covers the function code as well,
// uses the shift-order computation, and the frame is END-terminated.
func BuildDebug(command []byte) []byte {
	frame := make([]byte, 0, 2+len(command)+CRCSize+1)
	frame = append(frame, FrameStart, FuncDebug)
	frame = append(frame, command...)
	frame = appendChecksum(frame, ChecksumShift(frame[1:]))
	return append(frame, FrameEnd)
}

func appendChecksum(frame []byte, crc uint16) []byte {
	return append(frame, byte(crc), byte(crc>>8))
}
