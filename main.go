// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs
//
// Cellscope - Multi-node BMS monitor and control console
//
// A CLI tool for monitoring and controlling a master/slave battery
// management stack over its proprietary Modbus-RTU-like serial protocol.

package main

import (
	"os"

	"github.com/voltaic/cellscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
