package config

import (
	"github.com/talgya/orchard-sim/internal/engine"
	"github.com/talgya/orchard-sim/internal/harvest"
	"github.com/talgya/orchard-sim/internal/world"
)

// Options converts the configuration into simulation options.
func (c *Config) Options() engine.Options {
	o := engine.DefaultOptions()
	o.Mode = engine.Mode(c.Run.Mode)
	o.Seed = c.Orchard.Seed
	o.Field = world.GenConfig{
		Cols:         c.Orchard.Cols,
		Rows:         c.Orchard.Rows,
		Seed:         c.Orchard.Seed,
		BaseYield:    c.Orchard.InitialYield,
		Distribution: world.Distribution(c.Orchard.Distribution),
		Frequency:    c.Orchard.NoiseFrequency,
		Variance:     c.Orchard.Variance,
	}
	o.Capacity = c.Harvest.BinCapacity
	o.PickRate = c.Harvest.PickRate
	o.Workers = c.Harvest.Workers
	o.Layout = harvest.Layout(c.Harvest.Layout)
	o.MaxGroup = c.Harvest.MaxGroupSize
	o.Agents = c.Agents.Count
	o.SpeedHigh = c.Agents.SpeedHigh
	o.SpeedLow = c.Agents.SpeedLow
	o.Start = world.Coord{X: c.Agents.StartCol, Y: c.Agents.StartRow}
	o.PlanDepth = c.Agents.PlanDepth
	return o
}

// Engine builds the driver loop for the configured run.
func (c *Config) Engine() *engine.Engine {
	e := engine.NewEngine(c.Run.Ticks)
	e.Interval = c.Run.Interval
	e.ReportEvery = c.Run.ReportEvery
	return e
}
