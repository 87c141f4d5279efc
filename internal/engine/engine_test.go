package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/orchard-sim/internal/harvest"
	"github.com/talgya/orchard-sim/internal/world"
)

func TestEngineRunsTickBudget(t *testing.T) {
	eng := NewEngine(10)
	eng.ReportEvery = 4
	var ticks, reports []uint64
	eng.OnTick = func(tick uint64) { ticks = append(ticks, tick) }
	eng.OnReport = func(tick uint64) { reports = append(reports, tick) }

	require.NoError(t, eng.Run(context.Background()))

	assert.Len(t, ticks, 10)
	assert.Equal(t, uint64(1), ticks[0])
	assert.Equal(t, []uint64{4, 8}, reports)
	assert.Equal(t, uint64(10), eng.Tick)
}

func TestEngineStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eng := NewEngine(0)
	eng.Interval = time.Millisecond
	eng.OnTick = func(tick uint64) {
		if tick == 3 {
			cancel()
		}
	}

	err := eng.Run(ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, uint64(3), eng.Tick)
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
	}{
		{"unknown mode", func(o *Options) { o.Mode = "manual" }},
		{"narrow grid", func(o *Options) { o.Field.Cols = 3 }},
		{"zero capacity", func(o *Options) { o.Capacity = 0 }},
		{"negative pick rate", func(o *Options) { o.PickRate = -2 }},
		{"zero speed", func(o *Options) { o.SpeedLow = 0 }},
		{"start outside", func(o *Options) { o.Start = world.Coord{X: 20, Y: 0} }},
		{"group on lane", func(o *Options) { o.Groups = []GroupSpec{{Loc: world.Coord{X: 0, Y: 1}, Size: 2}} }},
		{"bin outside", func(o *Options) { o.Bins = []BinSpec{{Loc: world.Coord{X: 1, Y: 30}}} }},
		{"bin over capacity", func(o *Options) { o.Bins = []BinSpec{{Loc: world.Coord{X: 2, Y: 1}, Level: 15}} }},
		{"bin below empty", func(o *Options) { o.Bins = []BinSpec{{Loc: world.Coord{X: 3, Y: 1}, Level: -4}} }},
		{"agent outside", func(o *Options) { o.AgentStarts = []world.Coord{{X: -1, Y: 0}} }},
	}

	require.NoError(t, DefaultOptions().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			assert.Error(t, o.Validate())
			_, err := New(o)
			assert.Error(t, err)
		})
	}
}

func TestNewPlacesFixedGroupsAndBins(t *testing.T) {
	sim, err := New(DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 5, sim.Pool.CountAt(world.Coord{X: 3, Y: 2}))
	assert.Equal(t, 5, sim.Pool.CountAt(world.Coord{X: 4, Y: 3}))
	require.Equal(t, 2, sim.Bins.Len())
	assert.Equal(t, world.Coord{X: 3, Y: 2}, sim.Bins.All()[0].Loc)
	assert.Equal(t, harvest.BinID(0), sim.Bins.All()[0].ID)
	assert.Len(t, sim.Agents, 2)
	assert.InDelta(t, 8*8*50.0, sim.Stats.FieldYield, 1e-9)
}

func TestExplicitGroupsShareOneBin(t *testing.T) {
	o := DefaultOptions()
	o.Groups = []GroupSpec{
		{Loc: world.Coord{X: 2, Y: 1}, Size: 2},
		{Loc: world.Coord{X: 2, Y: 1}, Size: 3},
	}
	sim, err := New(o)
	require.NoError(t, err)

	assert.Equal(t, 5, sim.Pool.CountAt(world.Coord{X: 2, Y: 1}))
	assert.Equal(t, 1, sim.Bins.Len())
}

// invariantRecorder checks run-wide properties after every tick.
type invariantRecorder struct {
	t         *testing.T
	initial   float64
	capacity  float64
	lastRepo  int
	ticks     int
	delivered int
}

func (r *invariantRecorder) RecordTick(snap *Snapshot) error {
	t := r.t
	r.ticks++

	inBins := 0.0
	for _, b := range snap.Bins {
		assert.GreaterOrEqual(t, b.Level, 0.0, "tick %d bin %d", snap.Tick, b.ID)
		assert.LessOrEqual(t, b.Level, r.capacity, "tick %d bin %d", snap.Tick, b.ID)
		inBins += b.Level
	}
	total := snap.Stats.FieldYield + inBins + snap.Stats.DeliveredYield
	assert.InDelta(t, r.initial, total, 1e-6, "yield not conserved at tick %d", snap.Tick)
	assert.InDelta(t, snap.Stats.Harvested, inBins+snap.Stats.DeliveredYield, 1e-6)

	carried := make(map[harvest.BinID]bool)
	targeted := make(map[harvest.BinID]bool)
	for _, a := range snap.Agents {
		if a.CarriedBin != harvest.NoBin {
			assert.False(t, carried[a.CarriedBin], "tick %d: B%d carried twice", snap.Tick, a.CarriedBin)
			carried[a.CarriedBin] = true
		}
		if a.TargetBin != harvest.NoBin && a.TargetBin != a.CarriedBin {
			assert.False(t, targeted[a.TargetBin], "tick %d: B%d targeted twice", snap.Tick, a.TargetBin)
			targeted[a.TargetBin] = true
		}
	}

	assert.GreaterOrEqual(t, snap.RepoCount, r.lastRepo)
	assert.Equal(t, r.lastRepo+len(snap.Deliveries), snap.RepoCount)
	for _, d := range snap.Deliveries {
		assert.GreaterOrEqual(t, d.Bin.Level, r.capacity)
		assert.Equal(t, snap.Tick, d.Tick)
	}
	r.lastRepo = snap.RepoCount
	r.delivered += len(snap.Deliveries)
	return nil
}

func runWithInvariants(t *testing.T, o Options, ticks uint64) (*Simulation, *invariantRecorder) {
	t.Helper()
	sim, err := New(o)
	require.NoError(t, err)

	rec := &invariantRecorder{t: t, initial: sim.Stats.FieldYield, capacity: o.Capacity}
	sim.Recorders = append(sim.Recorders, rec)

	eng := NewEngine(ticks)
	eng.OnTick = sim.Step
	require.NoError(t, eng.Run(context.Background()))
	return sim, rec
}

func TestRunInvariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
	}{
		{"base fixed", func(o *Options) {}},
		{"auto fixed", func(o *Options) { o.Mode = ModeAuto }},
		{"base random", func(o *Options) {
			o.Layout = harvest.LayoutRandom
			o.Workers = 20
			o.Agents = 4
		}},
		{"auto random simplex", func(o *Options) {
			o.Mode = ModeAuto
			o.Layout = harvest.LayoutRandom
			o.Workers = 20
			o.Agents = 4
			o.Field.Distribution = world.DistributionSimplex
			o.PlanDepth = 2
		}},
		{"scarce yield", func(o *Options) {
			o.Field.BaseYield = 7
			o.Agents = 3
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)

			sim, rec := runWithInvariants(t, o, 300)

			assert.Equal(t, 300, rec.ticks)
			assert.Equal(t, uint64(300), sim.CurrentTick())
			assert.Zero(t, sim.GetStats().Warnings)
			assert.Equal(t, rec.delivered, sim.Repo.Len())
		})
	}
}

func TestDefaultRunDelivers(t *testing.T) {
	sim, _ := runWithInvariants(t, DefaultOptions(), 200)

	st := sim.GetStats()
	assert.Positive(t, st.DeliveredBins)
	assert.Positive(t, st.Redistributions)
	assert.InDelta(t, float64(st.DeliveredBins)*10, st.DeliveredYield, 1e-9)
}

func TestSnapshotIsACopy(t *testing.T) {
	sim, err := New(DefaultOptions())
	require.NoError(t, err)
	sim.Step(1)

	snap := sim.Snapshot()
	require.NotEmpty(t, snap.Bins)
	snap.Bins[0].Level = -1
	snap.Requests = append(snap.Requests, world.Coord{X: 9, Y: 9})

	again := sim.Snapshot()
	assert.NotEqual(t, -1.0, again.Bins[0].Level)
	assert.Len(t, again.Agents, 2)
	assert.Equal(t, uint64(1), again.Tick)
	assert.Equal(t, "filling", again.Bins[0].State)
}

func TestRecentEvents(t *testing.T) {
	sim, err := New(DefaultOptions())
	require.NoError(t, err)
	for i := uint64(1); i <= 20; i++ {
		sim.Step(i)
	}

	all := sim.RecentEvents(0)
	require.NotEmpty(t, all)
	last := sim.RecentEvents(1)
	require.Len(t, last, 1)
	assert.Equal(t, all[len(all)-1], last[0])
}

type failingRecorder struct{ calls int }

func (r *failingRecorder) RecordTick(*Snapshot) error {
	r.calls++
	return errors.New("disk full")
}

func TestRecorderErrorsDoNotStopTheRun(t *testing.T) {
	sim, err := New(DefaultOptions())
	require.NoError(t, err)
	rec := &failingRecorder{}
	sim.Recorders = append(sim.Recorders, rec)

	eng := NewEngine(5)
	eng.OnTick = sim.Step
	require.NoError(t, eng.Run(context.Background()))

	assert.Equal(t, 5, rec.calls)
	assert.Equal(t, uint64(5), sim.CurrentTick())
}

func TestConsistencyWarnings(t *testing.T) {
	o := DefaultOptions()
	o.Workers = 0
	o.NoInitBins = true
	sim, err := New(o)
	require.NoError(t, err)
	require.Len(t, sim.Agents, 2)

	sim.Agents[0].Transport().TargetBin = harvest.BinID(99)
	sim.checkConsistency(1)
	assert.Equal(t, 1, sim.GetStats().Warnings)

	b := sim.Bins.Create(sim.Alloc, world.Coord{X: 0, Y: 0}, false)
	sim.Agents[0].Transport().TargetBin = harvest.NoBin
	sim.Agents[0].Transport().CarriedBin = b.ID
	sim.Agents[1].Transport().CarriedBin = b.ID
	sim.checkConsistency(2)
	assert.Equal(t, 2, sim.GetStats().Warnings)

	events := sim.RecentEvents(0)
	require.Len(t, events, 2)
	assert.Equal(t, "warning", events[1].Category)
	assert.Contains(t, events[1].Description, "carried by A0 and A1")
}
