package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/orchard-sim/internal/persistence"
)

func newRunsCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs recorded in a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := persistence.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.Runs()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}
			for _, r := range runs {
				started := r.StartedAt
				if t, err := time.Parse(time.RFC3339, r.StartedAt); err == nil {
					started = humanize.Time(t)
				}
				status := "running"
				if r.FinishedAt != nil {
					status = "finished"
				}
				fmt.Printf("%s  %-4s  seed %-12d %dx%d  agents %d  ticks %s  delivered %s  (%s, %s)\n",
					r.ID, r.Mode, r.Seed, r.Cols, r.Rows, r.Agents,
					humanize.Comma(int64(r.Ticks)), humanize.Comma(int64(r.Delivered)), status, started)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "data/orchard.db", "SQLite database")
	return cmd
}
