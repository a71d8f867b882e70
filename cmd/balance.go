// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voltaic/cellscope/internal/session"
	"github.com/voltaic/cellscope/pkg/bmsproto"
)

var balanceSlave int

// balanceDevice resolves the --slave flag to a bus device id. 0 means the
// master.
func balanceDevice() (byte, error) {
	if balanceSlave == 0 {
		return bmsproto.DeviceMaster, nil
	}
	return bmsproto.SlaveDeviceID(balanceSlave)
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Cell balancing control and status",
}

var balanceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show balancing enable and live cell mask",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := balanceDevice()
		if err != nil {
			return err
		}

		s, _, _, err := connectSession(session.Events{})
		if err != nil {
			return err
		}
		defer s.Disconnect()

		enabled, err := s.ReadBalancingStatus(id)
		if err != nil {
			return err
		}
		state, err := s.ReadBalancingState(id)
		if err != nil {
			return err
		}

		fmt.Printf("device 0x%02X balancing: %s\n", id, onOff(enabled))
		fmt.Printf("cell mask: %s\n", formatCellMask(state))
		return nil
	},
}

var balanceOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Enable balancing",
	RunE:  func(cmd *cobra.Command, args []string) error { return setBalancing(true) },
}

var balanceOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable balancing",
	RunE:  func(cmd *cobra.Command, args []string) error { return setBalancing(false) },
}

var balanceSeqCmd = &cobra.Command{
	Use:   "seq MASK",
	Short: "Set the balancing cell mask",
	Long: `Sets the per-cell balancing mask. MASK is a 16-bit hex value where bit 0
selects cell 1 and bit 15 selects cell 16, e.g. 0x000F for cells 1-4.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := strings.TrimPrefix(strings.ToLower(args[0]), "0x")
		mask, err := strconv.ParseUint(raw, 16, 16)
		if err != nil {
			return fmt.Errorf("invalid mask %q: %v", args[0], err)
		}

		id, err := balanceDevice()
		if err != nil {
			return err
		}

		s, _, _, err := connectSession(session.Events{})
		if err != nil {
			return err
		}
		defer s.Disconnect()

		if err := s.SetBalancingSequence(id, uint16(mask)); err != nil {
			return err
		}
		fmt.Printf("device 0x%02X balancing mask set: %s\n", id, formatCellMask(uint16(mask)))
		return nil
	},
}

func setBalancing(enable bool) error {
	id, err := balanceDevice()
	if err != nil {
		return err
	}

	s, _, _, err := connectSession(session.Events{})
	if err != nil {
		return err
	}
	defer s.Disconnect()

	if err := s.SetBalancing(id, enable); err != nil {
		return err
	}
	fmt.Printf("device 0x%02X balancing: %s\n", id, onOff(enable))
	return nil
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// formatCellMask renders a balancing mask as the list of selected cells.
func formatCellMask(mask uint16) string {
	if mask == 0 {
		return "0x0000 (none)"
	}
	cells := []string{}
	for i := 0; i < bmsproto.CellCount; i++ {
		if mask&(1<<i) != 0 {
			cells = append(cells, strconv.Itoa(i+1))
		}
	}
	return fmt.Sprintf("0x%04X (cells %s)", mask, strings.Join(cells, ","))
}

func init() {
	balanceCmd.PersistentFlags().IntVar(&balanceSlave, "slave", 0, "Slave number (0 = master)")
	balanceCmd.AddCommand(balanceStatusCmd, balanceOnCmd, balanceOffCmd, balanceSeqCmd)
	rootCmd.AddCommand(balanceCmd)
}
