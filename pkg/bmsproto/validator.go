// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package bmsproto

import "fmt"

// AnomalyType represents different classes of implausible telemetry
type AnomalyType int

const (
	AnomalyHighCellVoltage AnomalyType = iota
	AnomalyHighPackVoltage
	AnomalyHighCurrent
	AnomalyInvalidTemp
	AnomalyShortPayload
)

// Plausibility limits for decoded telemetry. A reading outside these ranges
// is counted, not rejected; the raw value is still surfaced.
const (
	maxPlausibleCellVoltage = 5.5   // volts, single Li-ion cell
	maxPlausiblePackVoltage = 200.0 // volts
	maxPlausibleCurrent     = 500.0 // amperes, either direction
	maxPlausibleTemperature = 150.0 // degrees Celsius
)

// ValidationError represents one implausible reading
type ValidationError struct {
	Type    AnomalyType
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateTelemetry runs plausibility checks over a decoded combined read.
// Returns a slice of validation errors (empty if all readings are plausible).
func ValidateTelemetry(packVoltage, packCurrent float64, cellVoltages, temperatures []float64) []ValidationError {
	errors := []ValidationError{}

	if packVoltage > maxPlausiblePackVoltage {
		errors = append(errors, ValidationError{
			Type:    AnomalyHighPackVoltage,
			Message: fmt.Sprintf("pack voltage %.3fV exceeds %.0fV", packVoltage, maxPlausiblePackVoltage),
		})
	}
	if packCurrent > maxPlausibleCurrent || packCurrent < -maxPlausibleCurrent {
		errors = append(errors, ValidationError{
			Type:    AnomalyHighCurrent,
			Message: fmt.Sprintf("pack current %.3fA exceeds ±%.0fA", packCurrent, maxPlausibleCurrent),
		})
	}
	for i, v := range cellVoltages {
		if v > maxPlausibleCellVoltage {
			errors = append(errors, ValidationError{
				Type:    AnomalyHighCellVoltage,
				Message: fmt.Sprintf("cell %d voltage %.3fV exceeds %.1fV", i+1, v, maxPlausibleCellVoltage),
			})
		}
	}
	for i, t := range temperatures {
		if t > maxPlausibleTemperature {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidTemp,
				Message: fmt.Sprintf("temperature zone %d %.1f°C exceeds %.0f°C", i+1, t, maxPlausibleTemperature),
			})
		}
	}

	return errors
}
