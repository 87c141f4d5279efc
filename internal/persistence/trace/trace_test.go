package trace

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/orchard-sim/internal/engine"
	"github.com/talgya/orchard-sim/internal/world"
)

func TestWriteAndRead(t *testing.T) {
	path := PathFor(filepath.Join(t.TempDir(), "traces"), "run-1")
	w, err := Create(path)
	require.NoError(t, err)
	assert.Equal(t, path, w.Path())

	for tick := uint64(1); tick <= 3; tick++ {
		require.NoError(t, w.RecordTick(&engine.Snapshot{
			Tick:      tick,
			RepoCount: int(tick) - 1,
			Agents:    []engine.AgentSample{{ID: 0, Loc: world.Coord{X: int(tick), Y: 0}}},
		}))
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Error(t, w.Write(1), "write after close")

	var ticks []uint64
	require.NoError(t, Read(path, func(s *engine.Snapshot) error {
		ticks = append(ticks, s.Tick)
		return nil
	}))
	assert.Equal(t, []uint64{1, 2, 3}, ticks)

	sum, err := Summarize(path)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Ticks)
	assert.Equal(t, uint64(1), sum.FirstTick)
	assert.Equal(t, uint64(3), sum.LastTick)
	assert.Equal(t, 2, sum.Delivered)
	assert.Equal(t, 2, sum.AgentMoves)
}

func TestReadStopsOnCallbackError(t *testing.T) {
	path := PathFor(t.TempDir(), "run")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(engine.Snapshot{Tick: 1}))
	require.NoError(t, w.Write(engine.Snapshot{Tick: 2}))
	require.NoError(t, w.Close())

	stop := errors.New("stop")
	calls := 0
	err = Read(path, func(*engine.Snapshot) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReadMissingFile(t *testing.T) {
	err := Read(filepath.Join(t.TempDir(), "nope"+Ext), func(*engine.Snapshot) error { return nil })
	assert.Error(t, err)
}

func TestTraceOfARun(t *testing.T) {
	path := PathFor(t.TempDir(), "sim")
	w, err := Create(path)
	require.NoError(t, err)

	sim, err := engine.New(engine.DefaultOptions())
	require.NoError(t, err)
	sim.Recorders = append(sim.Recorders, w)
	eng := engine.NewEngine(80)
	eng.OnTick = sim.Step
	require.NoError(t, eng.Run(context.Background()))
	require.NoError(t, w.Close())

	sum, err := Summarize(path)
	require.NoError(t, err)
	assert.Equal(t, 80, sum.Ticks)
	assert.Equal(t, sim.Repo.Len(), sum.Delivered)
	assert.InDelta(t, sim.Repo.TotalYield(), sum.Yield, 1e-9)
	assert.Positive(t, sum.AgentMoves)
}
