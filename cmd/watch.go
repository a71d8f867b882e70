// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voltaic/cellscope/internal/recorder"
	"github.com/voltaic/cellscope/internal/session"
)

var watchRecord string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream telemetry snapshots to stdout",
	Long: `Polls the stack and prints one block per snapshot until interrupted.
With --record, every snapshot is also appended to a CBOR stream file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var rec *recorder.Recorder
		events := session.Events{
			OnConnectionError: func(reason string) {
				fmt.Fprintf(os.Stderr, "connection error: %s\n", reason)
			},
			OnSnapshot: func(snap session.Snapshot) {
				printSnapshot(snap)
				if rec != nil {
					if err := rec.Write(snap); err != nil {
						fmt.Fprintf(os.Stderr, "record: %v\n", err)
					}
				}
			},
		}
		s, cfg, desc, err := connectSession(events)
		if err != nil {
			return err
		}
		defer s.Disconnect()

		recordPath := watchRecord
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

		fmt.Printf("Watching %s (%d slaves), Ctrl-C to stop\n", desc, cfg.NumSlaves)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := session.NewPoller(s, newLogger(), events)
		if cfg.PollIntervalMs == 2000 {
			p.SetFrequency(0.5)
		}

		p.Run(ctx)

		fmt.Println()
		fmt.Print(s.Stats().String())
		return nil
	},
}

func printSnapshot(snap session.Snapshot) {
	fmt.Printf("[%s] pack %.3fV %+.3fA\n",
		snap.Taken.Format(time.TimeOnly), snap.PackVoltage, snap.PackCurrent)
	fmt.Printf("  master %s\n", formatReadings(&snap.Master))

	nums := make([]int, 0, len(snap.Slaves))
	for n := range snap.Slaves {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		fmt.Printf("  slave %-2d %s\n", n, formatReadings(snap.Slaves[n]))
	}
}

func formatReadings(r *session.DeviceReadings) string {
	minV, maxV := r.CellVoltages[0], r.CellVoltages[0]
	for _, v := range r.CellVoltages[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	tag := ""
	if !r.Fresh {
		tag = " (stale)"
	}
	return fmt.Sprintf("cells %.3f-%.3fV temps %.1f/%.1f/%.1f/%.1f°C%s",
		minV, maxV,
		r.Temperatures[0], r.Temperatures[1], r.Temperatures[2], r.Temperatures[3],
		tag)
}

func init() {
	watchCmd.Flags().StringVar(&watchRecord, "record", "", "Append snapshots to a CBOR stream file")
	rootCmd.AddCommand(watchCmd)
}
