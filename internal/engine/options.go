package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/talgya/orchard-sim/internal/agents"
	"github.com/talgya/orchard-sim/internal/harvest"
	"github.com/talgya/orchard-sim/internal/world"
)

// Mode selects the transport-agent variant.
type Mode string

const (
	ModeBase Mode = "base" // Rule-based agents
	ModeAuto Mode = "auto" // Planning agents
)

// Options describe one simulation run.
type Options struct {
	Mode Mode
	Seed int64

	Field    world.GenConfig
	Capacity float64 // Bin capacity
	PickRate float64 // Yield picked per worker per tick

	Workers   int
	Layout    harvest.Layout
	MaxGroup  int
	Agents    int
	SpeedHigh int
	SpeedLow  int
	Start     world.Coord // Where agents begin
	PlanDepth int

	// Explicit set-up, usually from a scenario file. When Groups is non-empty
	// it replaces the spawner layout.
	Groups      []GroupSpec
	Bins        []BinSpec
	Yields      []YieldSpec
	AgentStarts []world.Coord
	NoInitBins  bool // Skip the on-ground bin placed at each worker group
}

// GroupSpec places Size workers at Loc.
type GroupSpec struct {
	Loc  world.Coord
	Size int
}

// BinSpec places an extra on-ground bin.
type BinSpec struct {
	Loc   world.Coord
	Level float64
}

// YieldSpec overrides the generated yield of one cell.
type YieldSpec struct {
	Loc   world.Coord
	Yield float64
}

// DefaultOptions returns the stock orchard: a 10×8 grid with uniform yield,
// ten workers in two fixed groups and two rule-based agents at the origin.
func DefaultOptions() Options {
	return Options{
		Mode:      ModeBase,
		Seed:      42,
		Field:     world.DefaultGenConfig(),
		Capacity:  10,
		PickRate:  1,
		Workers:   10,
		Layout:    harvest.LayoutFixed,
		MaxGroup:  harvest.FixedGroupSize,
		Agents:    2,
		SpeedHigh: 2,
		SpeedLow:  1,
		Start:     world.Coord{X: 0, Y: 0},
		PlanDepth: 3,
	}
}

// Validate reports option combinations the simulation cannot run with.
func (o Options) Validate() error {
	g := world.Grid{Cols: o.Field.Cols, Rows: o.Field.Rows}
	switch {
	case o.Mode != ModeBase && o.Mode != ModeAuto:
		return fmt.Errorf("unknown mode %q", o.Mode)
	case g.Cols < 4 || g.Rows < 1:
		return fmt.Errorf("grid %dx%d too small", g.Cols, g.Rows)
	case o.Capacity <= 0:
		return fmt.Errorf("bin capacity must be positive, got %v", o.Capacity)
	case o.PickRate <= 0:
		return fmt.Errorf("pick rate must be positive, got %v", o.PickRate)
	case o.SpeedHigh < 1 || o.SpeedLow < 1:
		return fmt.Errorf("agent speeds must be at least 1")
	case !g.InBounds(o.Start):
		return fmt.Errorf("agent start %s outside grid", o.Start)
	}
	for _, gs := range o.Groups {
		if !g.IsHarvestable(gs.Loc) {
			return fmt.Errorf("worker group at %s is not harvestable", gs.Loc)
		}
	}
	for _, bs := range o.Bins {
		if !g.InBounds(bs.Loc) {
			return fmt.Errorf("bin at %s outside grid", bs.Loc)
		}
		if bs.Level < 0 || bs.Level > o.Capacity {
			return fmt.Errorf("bin at %s has level %v outside [0, %v]", bs.Loc, bs.Level, o.Capacity)
		}
	}
	for _, c := range o.AgentStarts {
		if !g.InBounds(c) {
			return fmt.Errorf("agent start %s outside grid", c)
		}
	}
	return nil
}

// New builds a simulation from options: generates the field, spawns the
// worker groups, places the initial bins and creates the agents.
func New(o Options) (*Simulation, error) {
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	gen := o.Field
	gen.Seed = o.Seed
	field := world.Generate(gen)
	for _, ys := range o.Yields {
		field.SetYield(ys.Loc, ys.Yield)
	}

	var (
		pool   *harvest.Pool
		groups []world.Coord
	)
	if len(o.Groups) > 0 {
		pool, groups = explicitGroups(o.Groups)
	} else {
		pool, groups = harvest.NewSpawner(o.Seed).Spawn(o.Layout, o.Workers, o.MaxGroup, field.Grid)
	}

	bins := harvest.NewRegistry(o.Capacity)
	alloc := harvest.NewAllocator()
	if !o.NoInitBins {
		harvest.PlaceInitialBins(bins, alloc, groups)
	}
	for _, bs := range o.Bins {
		b := bins.Create(alloc, bs.Loc, true)
		b.Level = bs.Level
	}

	var ds []agents.Decider
	for i := 0; i < o.Agents; i++ {
		start := o.Start
		if i < len(o.AgentStarts) {
			start = o.AgentStarts[i]
		}
		id := agents.AgentID(i)
		if o.Mode == ModeAuto {
			ds = append(ds, agents.NewPlanningAgent(id, start, o.PlanDepth))
		} else {
			ds = append(ds, agents.NewRuleAgent(id, start))
		}
	}

	sim := NewSimulation(o.Mode, field, pool, bins, alloc, ds, Params{
		Capacity:  o.Capacity,
		PickRate:  o.PickRate,
		SpeedHigh: o.SpeedHigh,
		SpeedLow:  o.SpeedLow,
	})

	slog.Info("orchard ready",
		"mode", o.Mode,
		"cols", field.Grid.Cols,
		"rows", field.Grid.Rows,
		"yield", fmt.Sprintf("%.1f", field.TotalYield()),
		"workers", pool.Len(),
		"groups", len(groups),
		"bins", bins.Len(),
		"agents", len(ds),
	)
	return sim, nil
}

func explicitGroups(specs []GroupSpec) (*harvest.Pool, []world.Coord) {
	var (
		workers []harvest.Worker
		groups  []world.Coord
		next    harvest.WorkerID
	)
	for _, gs := range specs {
		for i := 0; i < gs.Size; i++ {
			workers = append(workers, harvest.Worker{ID: next, Loc: gs.Loc})
			next++
		}
		if gs.Size > 0 && !slices.Contains(groups, gs.Loc) {
			groups = append(groups, gs.Loc)
		}
	}
	return harvest.NewPool(workers), groups
}
