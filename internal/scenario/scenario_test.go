package scenario

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/orchard-sim/internal/engine"
	"github.com/talgya/orchard-sim/internal/world"
)

func TestLoadShippedScenarios(t *testing.T) {
	for _, name := range []string{"delivery.yaml", "two-groups.yaml"} {
		t.Run(name, func(t *testing.T) {
			s, err := Load(filepath.Join("..", "..", "scenarios", name))
			require.NoError(t, err)

			o := engine.DefaultOptions()
			require.NoError(t, s.Apply(&o))

			sim, err := engine.New(o)
			require.NoError(t, err)
			for tick := uint64(1); tick <= 50; tick++ {
				sim.Step(tick)
			}
			assert.Zero(t, sim.GetStats().Warnings)
		})
	}
}

func TestDeliveryScenario(t *testing.T) {
	s, err := Load(filepath.Join("..", "..", "scenarios", "delivery.yaml"))
	require.NoError(t, err)

	o := engine.DefaultOptions()
	require.NoError(t, s.Apply(&o))
	assert.Equal(t, 0, o.Workers)
	assert.Equal(t, 1, o.Agents)
	assert.True(t, o.NoInitBins)
	assert.Equal(t, []world.Coord{{X: 0, Y: 4}}, o.AgentStarts)

	sim, err := engine.New(o)
	require.NoError(t, err)
	for tick := uint64(1); tick <= 3; tick++ {
		sim.Step(tick)
	}
	assert.Equal(t, 1, sim.GetStats().DeliveredBins)
}

func TestApplyGroupsReplaceWorkers(t *testing.T) {
	s, err := Parse([]byte(`
name: groups
groups:
  - at: {x: 2, y: 1}
    size: 3
  - at: {x: 5, y: 6}
    size: 2
`))
	require.NoError(t, err)

	o := engine.DefaultOptions()
	require.NoError(t, s.Apply(&o))
	assert.Equal(t, 5, o.Workers)
	require.Len(t, o.Groups, 2)
	assert.Equal(t, world.Coord{X: 5, Y: 6}, o.Groups[1].Loc)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("name: x\nbogus: 1\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = Parse([]byte("grid: [1, 2]\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"group on repository edge", "name: a\ngroups:\n  - at: {x: 0, y: 1}\n    size: 2\n"},
		{"bin outside", "name: b\nbins:\n  - at: {x: 40, y: 1}\n"},
		{"bad mode", "name: c\nmode: greedy\n"},
		{"negative pick rate", "name: d\nbin_capacity: 10\npick_rate: -2\n"},
		{"bin over capacity", "name: e\nbin_capacity: 10\nbins:\n  - at: {x: 2, y: 1}\n    level: 15\n"},
		{"bin below empty", "name: f\nbins:\n  - at: {x: 3, y: 1}\n    level: -4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.body))
			require.NoError(t, err)
			o := engine.DefaultOptions()
			assert.Error(t, s.Apply(&o))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	in := &Scenario{
		Name:   "saved",
		Mode:   "auto",
		Grid:   Grid{Cols: 12, Rows: 5},
		Groups: []Group{{At: world.Coord{X: 4, Y: 2}, Size: 4}},
		Yields: []Yield{{At: world.Coord{X: 4, Y: 2}, Yield: 30}},
	}
	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
