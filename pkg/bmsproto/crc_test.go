// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package bmsproto

import "testing"

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", nil, 0xFFFF},
		{"check string", []byte("123456789"), 0x4B37},
		{"single start byte", []byte{0x2A}, 0x9F3E},
		{"combined read span", []byte{0x01, 0x03, 0x04, 0x00, 0x17}, 0x4B18},
		{"comm start span", []byte{0x01, 0x06, 0x01, 0xAA, 0xAA}, 0x57B6},
		{"comm stop span", []byte{0x01, 0x06, 0x01, 0xA5, 0xA5}, 0xA3F3},
		{"read response span", []byte{0x01, 0x03, 0x00, 0x02, 0xBB, 0x7E}, 0xDA16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum() = 0x%04X, want 0x%04X", got, tt.want)
			}
		})
	}
}

func TestChecksumShift(t *testing.T) {
	if got := ChecksumShift([]byte{0x0B, 0xDE, 0xAD}); got != 0x1F98 {
		t.Errorf("ChecksumShift() = 0x%04X, want 0x1F98", got)
	}
}

// Both computation orders must agree for every input; the debug path keeps
// its own function only as an isolation seam.
func TestChecksumVariantsAgree(t *testing.T) {
	for b := 0; b < 256; b++ {
		data := []byte{byte(b)}
		if Checksum(data) != ChecksumShift(data) {
			t.Fatalf("variants disagree on byte 0x%02X: 0x%04X vs 0x%04X",
				b, Checksum(data), ChecksumShift(data))
		}
	}

	spans := [][]byte{
		{},
		{0x01, 0x03, 0x04, 0x00, 0x17},
		{0x01, 0x06, 0x01, 0xAA, 0xAA},
		{0x0B, 0xDE, 0xAD, 0xBE, 0xEF},
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	}
	for _, span := range spans {
		if Checksum(span) != ChecksumShift(span) {
			t.Errorf("variants disagree on % X", span)
		}
	}
}

func TestChecksumRoundTrip(t *testing.T) {
	// Appending a frame's own little-endian CRC and recomputing over the
	// widened span must yield zero.
	span := []byte{0x01, 0x03, 0x04, 0x00, 0x17}
	crc := Checksum(span)
	widened := append(append([]byte(nil), span...), byte(crc), byte(crc>>8))
	if got := Checksum(widened); got != 0 {
		t.Errorf("Checksum over span+CRC = 0x%04X, want 0", got)
	}
}
