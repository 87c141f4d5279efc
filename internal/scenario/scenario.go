// Package scenario reads and writes YAML files that pin down an orchard
// set-up: grid size, worker groups, bins, yield overrides and agent starts.
package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/orchard-sim/internal/engine"
	"github.com/talgya/orchard-sim/internal/harvest"
	"github.com/talgya/orchard-sim/internal/world"
)

// Scenario is one reproducible set-up. Zero-valued fields leave the
// corresponding option untouched.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	Mode string `yaml:"mode,omitempty"`
	Seed int64  `yaml:"seed,omitempty"`

	Grid         Grid    `yaml:"grid"`
	InitialYield float64 `yaml:"initial_yield,omitempty"`
	Distribution string  `yaml:"distribution,omitempty"`
	BinCapacity  float64 `yaml:"bin_capacity,omitempty"`
	PickRate     float64 `yaml:"pick_rate,omitempty"`
	Layout       string  `yaml:"layout,omitempty"`
	Workers      *int    `yaml:"workers,omitempty"` // nil keeps the configured count

	Agents      Agents        `yaml:"agents,omitempty"`
	AgentStarts []world.Coord `yaml:"agent_starts,omitempty"`

	Groups        []Group `yaml:"groups,omitempty"`
	Bins          []Bin   `yaml:"bins,omitempty"`
	Yields        []Yield `yaml:"yields,omitempty"`
	NoInitialBins bool    `yaml:"no_initial_bins,omitempty"`
}

// Grid is the orchard size in cells.
type Grid struct {
	Cols int `yaml:"cols"`
	Rows int `yaml:"rows"`
}

// Agents overrides transport agent settings.
type Agents struct {
	Count     int `yaml:"count,omitempty"`
	SpeedHigh int `yaml:"speed_high,omitempty"`
	SpeedLow  int `yaml:"speed_low,omitempty"`
	PlanDepth int `yaml:"plan_depth,omitempty"`
}

// Group places Size workers at one cell.
type Group struct {
	At   world.Coord `yaml:"at"`
	Size int         `yaml:"size"`
}

// Bin places an extra on-ground bin, optionally part-filled.
type Bin struct {
	At    world.Coord `yaml:"at"`
	Level float64     `yaml:"level,omitempty"`
}

// Yield overrides the starting yield of one cell.
type Yield struct {
	At    world.Coord `yaml:"at"`
	Yield float64     `yaml:"yield"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a scenario, rejecting unknown keys.
func Parse(raw []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &s, nil
}

// Save writes s to path.
func Save(path string, s *Scenario) error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}
	return nil
}

// Apply overlays the scenario onto o and validates the result.
func (s *Scenario) Apply(o *engine.Options) error {
	if s.Mode != "" {
		o.Mode = engine.Mode(s.Mode)
	}
	if s.Seed != 0 {
		o.Seed = s.Seed
	}
	if s.Grid.Cols != 0 {
		o.Field.Cols = s.Grid.Cols
	}
	if s.Grid.Rows != 0 {
		o.Field.Rows = s.Grid.Rows
	}
	if s.InitialYield != 0 {
		o.Field.BaseYield = s.InitialYield
	}
	if s.Distribution != "" {
		o.Field.Distribution = world.Distribution(s.Distribution)
	}
	if s.BinCapacity != 0 {
		o.Capacity = s.BinCapacity
	}
	if s.PickRate != 0 {
		o.PickRate = s.PickRate
	}
	if s.Layout != "" {
		o.Layout = harvest.Layout(s.Layout)
	}
	if s.Workers != nil {
		o.Workers = *s.Workers
	}

	if s.Agents.Count != 0 {
		o.Agents = s.Agents.Count
	}
	if s.Agents.SpeedHigh != 0 {
		o.SpeedHigh = s.Agents.SpeedHigh
	}
	if s.Agents.SpeedLow != 0 {
		o.SpeedLow = s.Agents.SpeedLow
	}
	if s.Agents.PlanDepth != 0 {
		o.PlanDepth = s.Agents.PlanDepth
	}
	if len(s.AgentStarts) > 0 {
		o.AgentStarts = append([]world.Coord(nil), s.AgentStarts...)
		if s.Agents.Count == 0 {
			o.Agents = len(s.AgentStarts)
		}
	}

	if len(s.Groups) > 0 {
		o.Groups = o.Groups[:0]
		o.Workers = 0
		for _, g := range s.Groups {
			o.Groups = append(o.Groups, engine.GroupSpec{Loc: g.At, Size: g.Size})
			o.Workers += g.Size
		}
	}
	for _, b := range s.Bins {
		o.Bins = append(o.Bins, engine.BinSpec{Loc: b.At, Level: b.Level})
	}
	for _, y := range s.Yields {
		o.Yields = append(o.Yields, engine.YieldSpec{Loc: y.At, Yield: y.Yield})
	}
	if s.NoInitialBins {
		o.NoInitBins = true
	}

	if err := o.Validate(); err != nil {
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return nil
}
