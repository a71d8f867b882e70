// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltaic/cellscope/internal/session"
)

var (
	setupSlaves int
	setupCells  int
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the stack layout",
	Long: `Writes the slave count and the top BMS cell count to the master.
The stack keeps this configuration until it is written again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if setupSlaves < 0 && setupCells < 0 {
			return fmt.Errorf("nothing to do: pass --slaves and/or --cells")
		}

		s, _, _, err := connectSession(session.Events{})
		if err != nil {
			return err
		}
		defer s.Disconnect()

		if setupSlaves >= 0 {
			if err := s.SetNumSlaves(setupSlaves); err != nil {
				return err
			}
			fmt.Printf("num slaves set to %d\n", setupSlaves)
		}
		if setupCells >= 0 {
			if err := s.SetNumCellsTopBMS(setupCells); err != nil {
				return err
			}
			fmt.Printf("num cells (top BMS) set to %d\n", setupCells)
		}
		return nil
	},
}

func init() {
	setupCmd.Flags().IntVar(&setupSlaves, "slaves", -1, "Number of slave BMS boards (0-60)")
	setupCmd.Flags().IntVar(&setupCells, "cells", -1, "Number of cells on the top BMS (0-16)")
	rootCmd.AddCommand(setupCmd)
}
