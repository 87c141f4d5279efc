package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/talgya/orchard-sim/internal/api"
	"github.com/talgya/orchard-sim/internal/config"
	"github.com/talgya/orchard-sim/internal/engine"
	"github.com/talgya/orchard-sim/internal/entropy"
	"github.com/talgya/orchard-sim/internal/metrics"
	"github.com/talgya/orchard-sim/internal/persistence"
	"github.com/talgya/orchard-sim/internal/persistence/trace"
	"github.com/talgya/orchard-sim/internal/scenario"
)

func newModeCommand(mode, short string, flags *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   mode,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			cfg.Run.Mode = mode
			applyFlags(cmd, flags, cfg)
			if err := config.ValidateConfig(cfg); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			return runSimulation(ctx, cfg, flags.scenario)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.scenario, "scenario", "", "Scenario YAML overlaid on the configuration")
	f.Int64Var(&flags.seed, "seed", 0, "Random seed; 0 draws a fresh one")
	f.IntVar(&flags.agents, "agents", 0, "Number of transport agents")
	f.Uint64Var(&flags.ticks, "ticks", 0, "Number of ticks to run")
	f.IntVar(&flags.layers, "layers", 0, "Candidate plans per planning agent")
	f.StringVar(&flags.dbPath, "db", "", "SQLite file for per-tick samples")
	f.StringVar(&flags.traceDir, "trace", "", "Directory for the compressed tick trace")
	f.BoolVar(&flags.serve, "serve", false, "Serve the read-only HTTP API")
	f.IntVar(&flags.port, "port", 0, "HTTP API port")
	return cmd
}

func applyFlags(cmd *cobra.Command, flags *runFlags, cfg *config.Config) {
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("seed") {
		cfg.Orchard.Seed = flags.seed
	}
	if changed("agents") {
		cfg.Agents.Count = flags.agents
	}
	if changed("ticks") {
		cfg.Run.Ticks = flags.ticks
	}
	if changed("layers") {
		cfg.Agents.PlanDepth = flags.layers
	}
	if changed("db") {
		cfg.Output.DBPath = flags.dbPath
	}
	if changed("trace") {
		cfg.Output.TraceDir = flags.traceDir
	}
	if changed("serve") {
		cfg.API.Enabled = flags.serve
	}
	if changed("port") {
		cfg.API.Port = flags.port
	}
	if changed("log-level") {
		cfg.Logging.Level = flags.logLevel
	}
}

func runSimulation(ctx context.Context, cfg *config.Config, scenarioPath string) error {
	logger, err := cfg.Logging.NewLogger(os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	slog.Info("orchardsim harvest logistics simulation", "mode", cfg.Run.Mode)

	// ── Seed ──────────────────────────────────────────────────────────
	seedSource := "config"
	if cfg.Orchard.Seed == 0 {
		cfg.Orchard.Seed, seedSource = entropy.NewClient(cfg.Entropy.RandomOrgKey).Seed(ctx)
	}
	slog.Info("seed chosen", "seed", cfg.Orchard.Seed, "source", seedSource)

	// ── Orchard ───────────────────────────────────────────────────────
	opts := cfg.Options()
	scenarioName := ""
	if scenarioPath != "" {
		s, err := scenario.Load(scenarioPath)
		if err != nil {
			return err
		}
		if err := s.Apply(&opts); err != nil {
			return err
		}
		scenarioName = s.Name
		slog.Info("scenario loaded", "name", s.Name, "path", scenarioPath)
	}
	sim, err := engine.New(opts)
	if err != nil {
		return err
	}
	runID := uuid.NewString()

	// ── Recorders ─────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.Output.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Output.DBPath), 0o755); err != nil {
			return fmt.Errorf("create db dir: %w", err)
		}
		db, err = persistence.Open(cfg.Output.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if _, err := db.StartRun(persistence.Run{
			ID:      runID,
			Mode:    string(opts.Mode),
			Seed:    opts.Seed,
			Cols:    opts.Field.Cols,
			Rows:    opts.Field.Rows,
			Agents:  len(sim.Agents),
			Workers: sim.Pool.Len(),
		}); err != nil {
			return err
		}
		meta := map[string]string{
			"seed_source": seedSource,
			"scenario":    scenarioName,
			"capacity":    strconv.FormatFloat(opts.Capacity, 'f', -1, 64),
			"plan_depth":  strconv.Itoa(opts.PlanDepth),
		}
		for k, v := range meta {
			if err := db.SaveMeta(runID, k, v); err != nil {
				slog.Warn("failed to save run metadata", "key", k, "error", err)
			}
		}
		sim.Recorders = append(sim.Recorders, db.NewRecorder(runID))
		slog.Info("database opened", "path", cfg.Output.DBPath, "run", runID)
	}

	var tw *trace.Writer
	if cfg.Output.TraceDir != "" {
		if err := os.MkdirAll(cfg.Output.TraceDir, 0o755); err != nil {
			return fmt.Errorf("create trace dir: %w", err)
		}
		tw, err = trace.Create(trace.PathFor(cfg.Output.TraceDir, runID))
		if err != nil {
			return err
		}
		defer tw.Close()
		sim.Recorders = append(sim.Recorders, tw)
		slog.Info("trace opened", "path", tw.Path())
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := cfg.Engine()
	eng.OnTick = sim.Step
	eng.OnReport = sim.Report

	// ── HTTP API ──────────────────────────────────────────────────────
	apiDone := make(chan error, 1)
	if cfg.API.Enabled {
		reg := prometheus.NewRegistry()
		collector := metrics.NewCollector()
		if err := collector.Register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		sim.Recorders = append(sim.Recorders, collector)

		srv := &api.Server{
			Sim:           sim,
			Eng:           eng,
			DB:            db,
			RunID:         runID,
			Gatherer:      reg,
			Port:          cfg.API.Port,
			Origins:       cfg.API.Origins,
			RatePerSecond: cfg.API.RatePerSecond,
			Burst:         cfg.API.Burst,
		}
		go func() { apiDone <- srv.Run(ctx) }()
	} else {
		close(apiDone)
	}

	// ── Start ─────────────────────────────────────────────────────────
	started := time.Now()
	runErr := eng.Run(ctx)
	interrupted := errors.Is(runErr, context.Canceled)
	if runErr != nil && !interrupted {
		return runErr
	}
	if interrupted {
		slog.Info("interrupted, stopping", "tick", eng.Tick)
	}

	stats := sim.GetStats()
	if db != nil {
		if err := db.FinishRun(runID, eng.Tick, stats.DeliveredBins); err != nil {
			slog.Warn("failed to finish run", "error", err)
		}
	}
	if tw != nil {
		if err := tw.Close(); err != nil {
			slog.Warn("failed to close trace", "error", err)
		}
	}
	printSummary(runID, eng.Tick, time.Since(started), stats, tw)

	if cfg.API.Enabled && !interrupted {
		slog.Info("run finished, API still serving until interrupted", "port", cfg.API.Port)
	}
	if err := <-apiDone; err != nil {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func printSummary(runID string, ticks uint64, elapsed time.Duration, st engine.SimStats, tw *trace.Writer) {
	fmt.Println()
	fmt.Println("── Run summary ──────────────────────────────────────────────")
	fmt.Printf("  Run:              %s\n", runID)
	fmt.Printf("  Ticks:            %s in %s\n", humanize.Comma(int64(ticks)), elapsed.Round(time.Millisecond))
	fmt.Printf("  Delivered bins:   %s\n", humanize.Comma(int64(st.DeliveredBins)))
	fmt.Printf("  Delivered yield:  %s\n", humanize.CommafWithDigits(st.DeliveredYield, 1))
	fmt.Printf("  Harvested yield:  %s\n", humanize.CommafWithDigits(st.Harvested, 1))
	fmt.Printf("  Yield remaining:  %s\n", humanize.CommafWithDigits(st.FieldYield, 1))
	fmt.Printf("  Bins in orchard:  %d (%d on the ground)\n", st.ActiveBins, st.BinsOnGround)
	fmt.Printf("  Redistributions:  %s\n", humanize.Comma(int64(st.Redistributions)))
	if st.Warnings > 0 {
		fmt.Printf("  Warnings:         %d\n", st.Warnings)
	}
	if tw != nil {
		if fi, err := os.Stat(tw.Path()); err == nil {
			fmt.Printf("  Trace:            %s (%s)\n", tw.Path(), humanize.Bytes(uint64(fi.Size())))
		}
	}
}
