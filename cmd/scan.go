// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltaic/cellscope/internal/session"
	"github.com/voltaic/cellscope/pkg/bmsproto"
)

var scanMax int

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Probe the bus for responding devices",
	Long: `Probes the master and each slave device id with a one-word read and
reports which devices answer. Absent devices time out; a full scan of 35
slaves takes about a minute.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, desc, err := connectSession(session.Events{})
		if err != nil {
			return err
		}
		defer s.Disconnect()

		fmt.Printf("Scanning %s\n\n", desc)

		// The probe already proved the master is there.
		fmt.Printf("  master   (0x%02X)  ok\n", bmsproto.DeviceMaster)

		found := 1
		for slave := 1; slave <= scanMax; slave++ {
			id, err := bmsproto.SlaveDeviceID(slave)
			if err != nil {
				return err
			}
			if s.Ping(id) {
				fmt.Printf("  slave %-2d (0x%02X)  ok\n", slave, id)
				found++
			} else if verbose {
				fmt.Printf("  slave %-2d (0x%02X)  no response\n", slave, id)
			}
		}

		fmt.Printf("\n%d device(s) responding\n", found)
		return nil
	},
}

func init() {
	scanCmd.Flags().IntVar(&scanMax, "max", bmsproto.MaxSlaves, "Highest slave number to probe")
	rootCmd.AddCommand(scanCmd)
}
