// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package bmsproto

import "testing"

func TestVoltageFromRaw(t *testing.T) {
	tests := []struct {
		name string
		raw  uint16
		want float64
	}{
		{"zero", 0x0000, 0.0},
		{"pack example", 0xBB7E, 48.254},
		{"cell example", 0x1387, 4.999},
		{"max", 0xFFFF, 65.535},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VoltageFromRaw(tt.raw); got != tt.want {
				t.Errorf("VoltageFromRaw(0x%04X) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCurrentFromRaw(t *testing.T) {
	tests := []struct {
		name string
		raw  uint32
		want float64
	}{
		{"zero", 0x000000, 0.0},
		{"positive", 0x0003E8, 1.0},
		{"max positive", 0x7FFFFF, 8388.607},
		{"minus one milliamp", 0xFFFFFF, -0.001},
		{"near negative extreme", 0x800001, -8388.607},
		{"high bits beyond 24 ignored", 0xFF0003E8, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CurrentFromRaw(tt.raw); got != tt.want {
				t.Errorf("CurrentFromRaw(0x%06X) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTemperatureFromRaw(t *testing.T) {
	if got := TemperatureFromRaw(378); got != 37.8 {
		t.Errorf("TemperatureFromRaw(378) = %v, want 37.8", got)
	}
	if got := TemperatureFromRaw(0); got != 0.0 {
		t.Errorf("TemperatureFromRaw(0) = %v, want 0", got)
	}
}

func TestDieTemperatureFromRaw(t *testing.T) {
	tests := []struct {
		name string
		raw  uint16
		want float64
	}{
		{"zero", 0x0000, 0.0},
		{"positive", 378, 37.8},
		{"negative one tenth", 0xFFFF, -0.1},
		{"near negative extreme", 0x8001, -3276.7},
		// The sign word itself negates to zero after the 15-bit mask.
		{"sign word", 0x8000, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DieTemperatureFromRaw(tt.raw); got != tt.want {
				t.Errorf("DieTemperatureFromRaw(0x%04X) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
