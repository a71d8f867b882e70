// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltaic/cellscope/internal/config"
	"github.com/voltaic/cellscope/internal/session"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "cellscope",
	Short: "Multi-node BMS monitor and control console",
	Long: `Cellscope - monitoring and control for a master/slave battery management
stack over its serial bus.

Provides commands for live telemetry monitoring, bus scanning, balancing
control, stack configuration and raw debug access.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the CELLSCOPE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "0.4.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cellscope.yaml", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log bus-level traffic")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig merges the config file under the connection flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if portName != "" {
		cfg.Port = portName
	}
	if rootCmd.PersistentFlags().Changed("baud") {
		cfg.Baud = baudRate
	}
	return cfg, nil
}

// newLogger builds the session logger used by all commands.
func newLogger() *session.StdLogger {
	return &session.StdLogger{
		L:       log.New(os.Stderr, "", log.Ltime),
		Verbose: verbose,
	}
}
