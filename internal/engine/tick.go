// Package engine provides the tick-based simulation loop and the Simulation
// state object that owns one harvesting run.
package engine

import (
	"context"
	"log/slog"
	"time"
)

// Engine drives the simulation forward.
type Engine struct {
	Tick        uint64        // Current tick counter (monotonic, never resets)
	MaxTicks    uint64        // Stop after this many ticks; 0 runs until cancelled
	Interval    time.Duration // Pause between ticks; 0 runs flat out
	ReportEvery uint64        // Ticks between OnReport calls; 0 disables reports

	// Callbacks, populated during setup.
	OnTick   func(tick uint64) // Every tick
	OnReport func(tick uint64) // Every ReportEvery ticks
}

// NewEngine creates an engine that runs maxTicks ticks without pacing.
func NewEngine(maxTicks uint64) *Engine {
	return &Engine{MaxTicks: maxTicks}
}

// Run advances the simulation until MaxTicks is reached or ctx is cancelled.
// It returns ctx.Err() when cancelled and nil when the tick budget is spent.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("simulation engine started", "tick", e.Tick, "max_ticks", e.MaxTicks, "interval", e.Interval)

	var timer *time.Timer
	if e.Interval > 0 {
		timer = time.NewTimer(e.Interval)
		defer timer.Stop()
	}

	for e.MaxTicks == 0 || e.Tick < e.MaxTicks {
		if err := ctx.Err(); err != nil {
			slog.Info("simulation engine cancelled", "tick", e.Tick)
			return err
		}

		start := time.Now()
		e.step()

		if timer == nil {
			continue
		}
		// Sleep for the remainder of the tick interval.
		wait := e.Interval - time.Since(start)
		if wait <= 0 {
			continue
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			slog.Info("simulation engine cancelled", "tick", e.Tick)
			return ctx.Err()
		case <-timer.C:
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
	return nil
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.ReportEvery > 0 && e.Tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(e.Tick)
	}
}
