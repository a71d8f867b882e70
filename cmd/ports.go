// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltaic/cellscope/internal/session"
)

var showAllPorts bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List candidate serial ports",
	Long: `Lists serial ports that could carry the BMS link. Bluetooth endpoints,
virtual ports and debug consoles are hidden unless --all is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := session.ListPorts()
		if err != nil {
			return err
		}
		if !showAllPorts {
			ports = session.FilterPorts(ports)
		}

		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}
		for _, p := range ports {
			if p.Description != "" {
				fmt.Printf("%-24s %s\n", p.Device, p.Description)
			} else {
				fmt.Println(p.Device)
			}
		}
		return nil
	},
}

func init() {
	portsCmd.Flags().BoolVarP(&showAllPorts, "all", "a", false, "Include filtered ports")
	rootCmd.AddCommand(portsCmd)
}
