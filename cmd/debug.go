// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voltaic/cellscope/internal/session"
	"github.com/voltaic/cellscope/pkg/bmsproto"
)

var debugCmd = &cobra.Command{
	Use:   "debug BYTES...",
	Short: "Send a raw command to the BMS IC",
	Long: `Passes raw command bytes through to the BMS IC and prints the reply.
BYTES are hex, either as separate arguments or one string:

  cellscope debug -p /dev/ttyUSB0 DE AD
  cellscope debug -p /dev/ttyUSB0 dead`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := strings.ToLower(strings.Join(args, ""))
		raw = strings.ReplaceAll(raw, "0x", "")
		command, err := hex.DecodeString(raw)
		if err != nil {
			return fmt.Errorf("invalid hex input: %v", err)
		}

		s, _, _, err := connectSession(session.Events{})
		if err != nil {
			return err
		}
		defer s.Disconnect()

		fmt.Printf("tx: %s\n", bmsproto.FormatFrame(bmsproto.BuildDebug(command)))
		reply, err := s.SendDebugCommand(command)
		if err != nil {
			return err
		}
		fmt.Printf("rx: %s\n", bmsproto.FormatFrame(reply))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
}
