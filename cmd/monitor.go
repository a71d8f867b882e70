// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/voltaic/cellscope/internal/recorder"
	"github.com/voltaic/cellscope/internal/session"
)

var monitorRecord string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live telemetry dashboard",
	Long: `Interactive dashboard showing pack, master and per-slave telemetry plus
link statistics.

Keys:
  q        quit
  r        toggle poll rate between 1 Hz and 0.5 Hz
  b        toggle balancing on the master
  m        enter a balancing cell mask (hex), Enter to apply, Esc to cancel`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var rec *recorder.Recorder
		var p *tea.Program
		events := session.Events{
			OnConnectionChanged: func(connected bool) {
				if p != nil {
					p.Send(connMsg(connected))
				}
			},
			OnConnectionError: func(reason string) {
				if p != nil {
					p.Send(connErrMsg(reason))
				}
			},
			OnSnapshot: func(snap session.Snapshot) {
				p.Send(snapshotMsg{snap: snap})
				if rec != nil {
					if err := rec.Write(snap); err != nil {
						p.Send(connErrMsg(fmt.Sprintf("record: %v", err)))
					}
				}
			},
		}

		s, cfg, desc, err := connectSession(events)
		if err != nil {
			return err
		}
		defer s.Disconnect()

		recordPath := monitorRecord
		if recordPath == "" {
			recordPath = cfg.Record
		}
		if recordPath != "" {
			rec, err = recorder.Open(recordPath)
			if err != nil {
				return err
			}
			defer rec.Close()
		}

		poller := session.NewPoller(s, session.NopLogger{}, events)

		m := newMonitorModel(desc, cfg.NumSlaves, s, poller)
		if cfg.PollIntervalMs == 2000 {
			poller.SetFrequency(0.5)
			m.pollHz = 0.5
		}
		p = tea.NewProgram(m, tea.WithAltScreen())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go poller.Run(ctx)

		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			return err
		}
		return nil
	},
}

func init() {
	monitorCmd.Flags().StringVar(&monitorRecord, "record", "", "Append snapshots to a CBOR stream file")
	rootCmd.AddCommand(monitorCmd)
}
