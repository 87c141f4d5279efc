// Command orchardsim runs the orchard harvesting-logistics simulation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// runFlags are shared by the base and auto commands. Flags only override
// the loaded configuration when set on the command line.
type runFlags struct {
	configPath string
	scenario   string
	seed       int64
	agents     int
	ticks      uint64
	layers     int
	dbPath     string
	traceDir   string
	serve      bool
	port       int
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &runFlags{}

	root := &cobra.Command{
		Use:   "orchardsim",
		Short: "Simulate bin transport in a harvested orchard",
		Long: `orchardsim moves bins between worker groups and the repository edge of an
orchard grid, one tick at a time.

Examples:
  orchardsim base --agents 3 --ticks 1000
  orchardsim auto --layers 4 --scenario scenarios/two-groups.yaml
  orchardsim base --db data/orchard.db --trace data/traces --serve
  orchardsim replay data/traces/<run-id>.jsonl.zst
  orchardsim runs --db data/orchard.db`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default ./orchard.yaml or ./configs/orchard.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(newModeCommand("base", "Run with rule-based transport agents", flags))
	root.AddCommand(newModeCommand("auto", "Run with planning transport agents", flags))
	root.AddCommand(newReplayCommand())
	root.AddCommand(newRunsCommand())

	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
