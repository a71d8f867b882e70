// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package session

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes one candidate serial port.
type PortInfo struct {
	Device      string
	Description string
}

// skipKeywords marks ports that are never a BMS link: Bluetooth endpoints,
// virtual ports, debug consoles.
var skipKeywords = []string{"bluetooth", "bt ", "rfcomm", "virtual", "debug", "n/a", "(null)"}

// ListPorts enumerates serial ports with their USB descriptions.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		desc := d.Product
		if d.IsUSB && d.VID != "" {
			desc = fmt.Sprintf("%s [%s:%s]", d.Product, d.VID, d.PID)
		}
		ports = append(ports, PortInfo{Device: d.Name, Description: desc})
	}
	return ports, nil
}

// FilterPorts drops ports whose device name or description matches a skip
// keyword, case-insensitively.
func FilterPorts(ports []PortInfo) []PortInfo {
	kept := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		haystack := strings.ToLower(p.Device + " " + p.Description)
		skip := false
		for _, kw := range skipKeywords {
			if strings.Contains(haystack, kw) {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, p)
		}
	}
	return kept
}
