// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package bmsproto

// VoltageFromRaw converts a raw register word to volts. Used for both pack
// and per-cell voltages: 0xBB7E (48254) -> 48.254 V.
func VoltageFromRaw(raw uint16) float64 {
	return float64(raw) / 1000.0
}

// CurrentFromRaw converts a raw 24-bit two's-complement word (carried in the
// low 24 bits of raw) to amperes. 0xFFFFFF -> -0.001 A.
func CurrentFromRaw(raw uint32) float64 {
	raw &= 0xFFFFFF
	if raw&0x800000 != 0 {
		magnitude := (^raw + 1) & 0x7FFFFF
		return -float64(magnitude) / 1000.0
	}
	return float64(raw) / 1000.0
}

// TemperatureFromRaw converts a raw pack temperature word to degrees
// Celsius: 378 -> 37.8.
func TemperatureFromRaw(raw uint16) float64 {
	return float64(raw) / 10.0
}

// DieTemperatureFromRaw converts a raw 16-bit two's-complement die
// temperature word to degrees Celsius. Note 0x8000 maps to 0.0 because the
// magnitude is masked to 15 bits after negation.
func DieTemperatureFromRaw(raw uint16) float64 {
	if raw&0x8000 != 0 {
		magnitude := (^raw + 1) & 0x7FFF
		return -float64(magnitude) / 10.0
	}
	return float64(raw) / 10.0
}
