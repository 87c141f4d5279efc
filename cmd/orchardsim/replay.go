package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/orchard-sim/internal/engine"
	"github.com/talgya/orchard-sim/internal/persistence/trace"
)

func newReplayCommand() *cobra.Command {
	var every uint64

	cmd := &cobra.Command{
		Use:   "replay <trace-file>",
		Short: "Summarize a recorded tick trace",
		Long: `Read a compressed tick trace written with --trace and print its summary.
With --every N, also print the repository size and bin count every N ticks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			fi, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("open trace: %w", err)
			}

			if every > 0 {
				fmt.Println("── Timeline ──")
				err := trace.Read(path, func(snap *engine.Snapshot) error {
					if snap.Tick%every == 0 {
						fmt.Printf("  tick %-8s repository %-5d bins %-4d requests %d\n",
							humanize.Comma(int64(snap.Tick)), snap.RepoCount, len(snap.Bins), len(snap.Requests))
					}
					return nil
				})
				if err != nil {
					return err
				}
			}

			sum, err := trace.Summarize(path)
			if err != nil {
				return err
			}
			fmt.Println("── Trace summary ──")
			fmt.Printf("  File:             %s (%s)\n", path, humanize.Bytes(uint64(fi.Size())))
			fmt.Printf("  Ticks:            %s (%d to %d)\n", humanize.Comma(int64(sum.Ticks)), sum.FirstTick, sum.LastTick)
			fmt.Printf("  Delivered bins:   %s\n", humanize.Comma(int64(sum.Delivered)))
			fmt.Printf("  Delivered yield:  %s\n", humanize.CommafWithDigits(sum.Yield, 1))
			fmt.Printf("  Peak bins:        %d\n", sum.MaxBins)
			fmt.Printf("  Agent moves:      %s\n", humanize.Comma(int64(sum.AgentMoves)))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&every, "every", 0, "Print a timeline line every N ticks")
	return cmd
}
