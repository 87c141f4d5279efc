package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/orchard-sim/internal/harvest"
	"github.com/talgya/orchard-sim/internal/world"
)

type fixture struct {
	env   *Env
	field *world.Field
}

func newFixture(yield float64) *fixture {
	g := world.Grid{Cols: 10, Rows: 8}
	field := world.NewField(g)
	for r := 0; r < g.Rows; r++ {
		for c := 1; c <= g.Cols-2; c++ {
			field.SetYield(world.Coord{X: c, Y: r}, yield)
		}
	}
	return &fixture{
		field: field,
		env: &Env{
			Params: Params{
				Grid:      g,
				Capacity:  10,
				SpeedHigh: 2,
				SpeedLow:  1,
			},
			Bins:     harvest.NewRegistry(10),
			Repo:     &harvest.Repository{},
			Requests: &harvest.RequestQueue{},
			Alloc:    harvest.NewAllocator(),
			Field:    field,
		},
	}
}

func (f *fixture) bin(loc world.Coord, level, rate float64) *harvest.Bin {
	b := f.env.Bins.Create(f.env.Alloc, loc, true)
	b.Level = level
	b.FillRate = rate
	return b
}

func (f *fixture) peers(ds ...Decider) {
	f.env.Peers = f.env.Peers[:0]
	for _, d := range ds {
		f.env.Peers = append(f.env.Peers, d.Transport())
	}
}

func kinds(actions []Action) []ActionKind {
	out := make([]ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func TestNavigatorRules(t *testing.T) {
	nav := Navigator{Grid: world.Grid{Cols: 10, Rows: 8}, SpeedHigh: 2, SpeedLow: 1}

	tests := []struct {
		name   string
		cur    world.Coord
		target world.Coord
		loaded bool
		want   world.Coord
	}{
		{"repository straight left", world.Coord{X: 5, Y: 3}, world.Coord{X: 0, Y: 6}, false, world.Coord{X: 3, Y: 3}},
		{"repository clamps at column 0", world.Coord{X: 1, Y: 3}, world.Coord{X: 0, Y: 3}, false, world.Coord{X: 0, Y: 3}},
		{"same row right", world.Coord{X: 2, Y: 4}, world.Coord{X: 7, Y: 4}, false, world.Coord{X: 4, Y: 4}},
		{"same row clamps", world.Coord{X: 6, Y: 4}, world.Coord{X: 7, Y: 4}, false, world.Coord{X: 7, Y: 4}},
		{"same row left loaded", world.Coord{X: 6, Y: 4}, world.Coord{X: 2, Y: 4}, true, world.Coord{X: 5, Y: 4}},
		{"lane moves down", world.Coord{X: 0, Y: 0}, world.Coord{X: 3, Y: 5}, false, world.Coord{X: 0, Y: 2}},
		{"right lane moves up", world.Coord{X: 9, Y: 5}, world.Coord{X: 3, Y: 4}, false, world.Coord{X: 9, Y: 4}},
		{"nearer lane is left", world.Coord{X: 3, Y: 1}, world.Coord{X: 2, Y: 6}, false, world.Coord{X: 1, Y: 1}},
		{"lane seeking clamps at lane", world.Coord{X: 1, Y: 1}, world.Coord{X: 2, Y: 6}, false, world.Coord{X: 0, Y: 1}},
		{"nearer lane is right", world.Coord{X: 7, Y: 1}, world.Coord{X: 2, Y: 6}, false, world.Coord{X: 9, Y: 1}},
		{"loaded lane seek", world.Coord{X: 5, Y: 1}, world.Coord{X: 2, Y: 6}, true, world.Coord{X: 6, Y: 1}},
		{"out of bounds target", world.Coord{X: 3, Y: 3}, world.Coord{X: 12, Y: 3}, false, world.Coord{X: 3, Y: 3}},
		{"no target", world.Coord{X: 3, Y: 3}, world.NoCoord, false, world.Coord{X: 3, Y: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nav.Step(tt.cur, tt.target, tt.loaded))
		})
	}
}

func TestNavigatorReachesEveryCell(t *testing.T) {
	g := world.Grid{Cols: 10, Rows: 8}
	nav := Navigator{Grid: g, SpeedHigh: 3, SpeedLow: 1}
	start := world.Coord{X: 0, Y: 0}

	for r := 0; r < g.Rows; r++ {
		for c := 1; c <= g.Cols-2; c++ {
			target := world.Coord{X: c, Y: r}
			cur := start
			for i := 0; i < 50 && cur != target; i++ {
				cur = nav.Step(cur, target, false)
			}
			assert.Equal(t, target, cur, "could not reach %s", target)
		}
	}
}

func TestTravelTime(t *testing.T) {
	assert.Equal(t, 0, TravelTime(world.Coord{X: 1, Y: 1}, world.Coord{X: 1, Y: 1}, 2))
	assert.Equal(t, 3, TravelTime(world.Coord{X: 0, Y: 0}, world.Coord{X: 2, Y: 3}, 2))
	assert.Equal(t, 5, TravelTime(world.Coord{X: 0, Y: 0}, world.Coord{X: 2, Y: 3}, 0))
}

func TestClosestFullBinTieKeepsFirst(t *testing.T) {
	f := newFixture(50)
	from := world.Coord{X: 4, Y: 4}
	first := f.bin(world.Coord{X: 6, Y: 4}, 10, 0)
	f.bin(world.Coord{X: 2, Y: 4}, 10, 0)
	f.bin(world.Coord{X: 4, Y: 5}, 9, 5)

	got := ClosestFullBin(from, f.env.Bins.All(), 10)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}

func TestSoonestFullBinUsesProjection(t *testing.T) {
	f := newFixture(50)
	from := world.Coord{X: 0, Y: 0}
	f.bin(world.Coord{X: 2, Y: 0}, 4, 1)        // 4 + 1*2 = 6
	far := f.bin(world.Coord{X: 6, Y: 0}, 2, 2) // 2 + 2*6 = 14
	f.bin(world.Coord{X: 3, Y: 0}, 8, 0)        // stalled

	got := SoonestFullBin(from, f.env.Bins.All(), 1)
	require.NotNil(t, got)
	assert.Equal(t, far.ID, got.ID)

	assert.Nil(t, SoonestFullBin(from, nil, 1))
}

func TestUnclaimedBinsExcludesPeers(t *testing.T) {
	f := newFixture(50)
	a := f.bin(world.Coord{X: 2, Y: 1}, 0, 1)
	b := f.bin(world.Coord{X: 3, Y: 1}, 0, 1)
	c := f.bin(world.Coord{X: 4, Y: 1}, 0, 1)

	self := NewRuleAgent(0, world.Coord{})
	self.T.TargetBin = a.ID
	other := NewRuleAgent(1, world.Coord{})
	other.T.TargetBin = b.ID
	carrier := NewRuleAgent(2, world.Coord{})
	carrier.T.CarriedBin = c.ID
	f.peers(self, other, carrier)

	got := UnclaimedBins(self.T.ID, f.env.Bins, f.env.Peers)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID, "own target is not excluded")
}

func TestIdleAgentWithNothingToDoStaysPut(t *testing.T) {
	f := newFixture(50)
	a := NewRuleAgent(0, world.Coord{X: 5, Y: 5})
	f.peers(a)

	actions := a.Decide(f.env)

	assert.Equal(t, []ActionKind{ActionIdle}, kinds(actions))
	assert.Equal(t, world.Coord{X: 5, Y: 5}, a.T.Loc)
	assert.Equal(t, StateIdle, a.T.State(f.env.Bins))
}

func TestAgentTargetsFullBinWithReplacement(t *testing.T) {
	f := newFixture(50)
	full := f.bin(world.Coord{X: 3, Y: 0}, 10, 2)
	a := NewRuleAgent(0, world.Coord{X: 0, Y: 0})
	f.peers(a)

	actions := a.Decide(f.env)

	assert.Equal(t, []ActionKind{ActionClaimBin, ActionNewBin, ActionMove}, kinds(actions))
	assert.Equal(t, full.ID, a.T.TargetBin)
	spare, ok := f.env.Bins.Get(a.T.CarriedBin)
	require.True(t, ok)
	assert.False(t, spare.OnGround)
	assert.Zero(t, spare.Level)
	assert.Equal(t, world.Coord{X: 2, Y: 0}, a.T.Loc, "empty bin travels at high speed")
	assert.Equal(t, a.T.Loc, spare.Loc)
	assert.Equal(t, StateEnRoute, a.T.State(f.env.Bins))
}

func TestAgentSkipsReplacementWhenYieldRunsOut(t *testing.T) {
	f := newFixture(50)
	loc := world.Coord{X: 3, Y: 0}
	f.field.SetYield(loc, 2)
	f.bin(loc, 10, 2) // 2 - 2*3 < 0 by the time the agent arrives
	a := NewRuleAgent(0, world.Coord{X: 0, Y: 0})
	f.peers(a)

	a.Decide(f.env)

	assert.Equal(t, harvest.NoBin, a.T.CarriedBin)
	assert.Equal(t, 1, f.env.Bins.Len())
}

func TestPickupSwapAndDelivery(t *testing.T) {
	f := newFixture(50)
	loc := world.Coord{X: 2, Y: 0}
	full := f.bin(loc, 10, 2)
	f.env.Requests.Register(loc)
	a := NewRuleAgent(0, world.Coord{X: 0, Y: 0})
	f.peers(a)

	a.Decide(f.env) // claim, take spare, move to (2,0)
	require.Equal(t, loc, a.T.Loc)
	spareID := a.T.CarriedBin

	actions := a.Decide(f.env)
	assert.Equal(t, []ActionKind{ActionDropBin, ActionPickup, ActionMove}, kinds(actions))
	spare, ok := f.env.Bins.Get(spareID)
	require.True(t, ok)
	assert.True(t, spare.OnGround)
	assert.Equal(t, loc, spare.Loc)
	assert.False(t, f.env.Requests.Contains(loc), "the replacement serves the pending request")
	assert.Equal(t, full.ID, a.T.CarriedBin)
	assert.False(t, full.OnGround)
	assert.Equal(t, world.Coord{X: 1, Y: 0}, a.T.Loc, "full bin travels at low speed")
	assert.Equal(t, StateCarrying, a.T.State(f.env.Bins))

	actions = a.Decide(f.env)
	assert.Equal(t, []ActionKind{ActionMove, ActionDeliver}, kinds(actions))
	assert.Equal(t, 1, f.env.Repo.Len())
	_, ok = f.env.Bins.Get(full.ID)
	assert.False(t, ok)
	assert.Equal(t, harvest.NoBin, a.T.CarriedBin)
	assert.Equal(t, harvest.NoBin, a.T.TargetBin)
	assert.True(t, a.T.Target.IsNone())
	assert.Equal(t, StateIdle, a.T.State(f.env.Bins))
}

func TestDeliveryAtRepositoryColumn(t *testing.T) {
	f := newFixture(50)
	b := f.bin(world.Coord{X: 1, Y: 4}, 10, 0)
	b.OnGround = false
	a := NewRuleAgent(0, world.Coord{X: 1, Y: 4})
	a.T.CarriedBin = b.ID
	a.T.TargetBin = b.ID
	f.peers(a)

	a.Decide(f.env)

	assert.Equal(t, world.Coord{X: 0, Y: 4}, a.T.Loc)
	assert.Equal(t, 1, f.env.Repo.Len())
	assert.Equal(t, b.ID, f.env.Repo.Deliveries()[0].Bin.ID)
	assert.Zero(t, f.env.Bins.Len())
	assert.True(t, a.T.Idle())
	assert.True(t, a.T.Target.IsNone())
}

func TestAgentWaitsThenPicksUp(t *testing.T) {
	f := newFixture(0)
	loc := world.Coord{X: 2, Y: 0}
	b := f.bin(loc, 6, 2)
	a := NewRuleAgent(0, loc)
	f.peers(a)

	a.Decide(f.env)
	assert.Equal(t, b.ID, a.T.TargetBin)
	assert.Equal(t, harvest.NoBin, a.T.CarriedBin, "no yield left, no replacement")

	actions := a.Decide(f.env)
	assert.Equal(t, []ActionKind{ActionWait}, kinds(actions))
	assert.Equal(t, StateWaiting, a.T.State(f.env.Bins))
	assert.Equal(t, loc, a.T.Loc)

	b.Level = 10
	actions = a.Decide(f.env)
	assert.Equal(t, []ActionKind{ActionPickup, ActionMove}, kinds(actions))
}

func TestWaitingAgentReleasesStalledBin(t *testing.T) {
	f := newFixture(0)
	loc := world.Coord{X: 2, Y: 0}
	b := f.bin(loc, 6, 2)
	a := NewRuleAgent(0, loc)
	f.peers(a)
	a.Decide(f.env)

	b.FillRate = 0
	actions := a.Decide(f.env)

	assert.Equal(t, []ActionKind{ActionRelease}, kinds(actions))
	assert.True(t, a.T.Idle())
}

func TestMissingTargetBinIsReleased(t *testing.T) {
	f := newFixture(50)
	a := NewRuleAgent(0, world.Coord{X: 3, Y: 3})
	a.T.TargetBin = 99
	a.T.Target = world.Coord{X: 5, Y: 3}
	f.peers(a)

	actions := a.Decide(f.env)

	assert.Equal(t, []ActionKind{ActionRelease}, kinds(actions))
	assert.True(t, a.T.Idle())
	assert.Equal(t, world.Coord{X: 3, Y: 3}, a.T.Loc)
}

func TestRequestClaimAndDrop(t *testing.T) {
	f := newFixture(50)
	loc := world.Coord{X: 4, Y: 0}
	f.env.Requests.Register(loc)
	a := NewRuleAgent(0, world.Coord{X: 0, Y: 0})
	f.peers(a)

	actions := a.Decide(f.env)
	assert.Equal(t, []ActionKind{ActionNewBin, ActionClaimLoc, ActionMove}, kinds(actions))
	assert.Zero(t, f.env.Requests.Len())
	assert.Equal(t, StateDelivering, a.T.State(f.env.Bins))
	binID := a.T.CarriedBin

	a.Decide(f.env) // (2,0) -> (4,0)
	require.Equal(t, loc, a.T.Loc)
	actions = a.Decide(f.env)
	assert.Equal(t, []ActionKind{ActionDropBin}, kinds(actions))

	b, ok := f.env.Bins.Get(binID)
	require.True(t, ok)
	assert.True(t, b.OnGround)
	assert.Equal(t, loc, b.Loc)
	assert.True(t, a.T.Idle())
}

func TestCoveredRequestIsDropped(t *testing.T) {
	f := newFixture(50)
	loc := world.Coord{X: 4, Y: 0}
	f.env.Requests.Register(loc)
	first := NewRuleAgent(0, world.Coord{X: 0, Y: 0})
	f.peers(first)
	first.Decide(f.env)

	// The request comes back (e.g. re-registered) while the first agent is
	// still on its way with an empty bin.
	f.env.Requests.Register(loc)
	second := NewRuleAgent(1, world.Coord{X: 0, Y: 0})
	f.peers(first, second)

	actions := second.Decide(f.env)
	assert.Equal(t, []ActionKind{ActionIdle}, kinds(actions))
	assert.True(t, second.T.Idle())
	assert.Zero(t, f.env.Requests.Len())
}

func TestAgentsNeverShareTargets(t *testing.T) {
	f := newFixture(50)
	f.bin(world.Coord{X: 3, Y: 1}, 10, 1)
	f.bin(world.Coord{X: 5, Y: 2}, 4, 1)
	f.bin(world.Coord{X: 2, Y: 6}, 10, 1)

	var ds []Decider
	for i := 0; i < 5; i++ {
		ds = append(ds, NewRuleAgent(AgentID(i), world.Coord{X: 0, Y: 0}))
	}
	f.peers(ds...)

	for _, d := range ds {
		d.Decide(f.env)
	}

	targets := make(map[harvest.BinID]AgentID)
	carried := make(map[harvest.BinID]AgentID)
	for _, d := range ds {
		tr := d.Transport()
		if tr.TargetBin != harvest.NoBin {
			_, dup := targets[tr.TargetBin]
			assert.False(t, dup, "bin %d targeted twice", tr.TargetBin)
			targets[tr.TargetBin] = tr.ID
		}
		if tr.CarriedBin != harvest.NoBin {
			_, dup := carried[tr.CarriedBin]
			assert.False(t, dup, "bin %d carried twice", tr.CarriedBin)
			carried[tr.CarriedBin] = tr.ID
		}
	}
	assert.Len(t, targets, 3)
}

func TestPlanningAgentsNegotiate(t *testing.T) {
	f := newFixture(50)
	best := f.bin(world.Coord{X: 2, Y: 0}, 10, 1)
	next := f.bin(world.Coord{X: 6, Y: 0}, 10, 1)

	a := NewPlanningAgent(0, world.Coord{X: 0, Y: 0}, 3)
	b := NewPlanningAgent(1, world.Coord{X: 0, Y: 0}, 3)
	f.peers(a, b)

	a.MakePlans(f.env)
	b.MakePlans(f.env)
	require.NotEmpty(t, a.Candidates())
	assert.Equal(t, best.ID, a.Candidates()[0].Bin)
	assert.Equal(t, best.ID, b.Candidates()[0].Bin, "both propose the same bin")
	assert.Equal(t, 2, f.env.Bins.Len(), "proposing does not mutate shared state")

	a.SelectPlan(f.env)
	a.Decide(f.env)
	b.SelectPlan(f.env)
	sel, ok := b.Selected()
	require.True(t, ok)
	assert.Equal(t, next.ID, sel.Bin, "second agent falls back to its next candidate")
	b.Decide(f.env)

	assert.Equal(t, best.ID, a.T.TargetBin)
	assert.Equal(t, next.ID, b.T.TargetBin)
	assert.Equal(t, harvest.NoBin, a.T.PlannedBin, "published plan is cleared on commit")
}

func TestPlanningAgentDepthLimitsCandidates(t *testing.T) {
	f := newFixture(50)
	for c := 1; c <= 6; c++ {
		f.bin(world.Coord{X: c, Y: 0}, 10, 1)
	}
	a := NewPlanningAgent(0, world.Coord{X: 0, Y: 0}, 2)
	f.peers(a)

	a.MakePlans(f.env)
	assert.Len(t, a.Candidates(), 2)
}

func TestPlanningAgentIdleWithoutPlans(t *testing.T) {
	f := newFixture(50)
	a := NewPlanningAgent(0, world.Coord{X: 5, Y: 5}, 3)
	f.peers(a)

	a.MakePlans(f.env)
	a.SelectPlan(f.env)
	actions := a.Decide(f.env)

	assert.Equal(t, []ActionKind{ActionIdle}, kinds(actions))
	assert.Equal(t, world.Coord{X: 5, Y: 5}, a.T.Loc)
}

func TestPlanningAgentServesRequest(t *testing.T) {
	f := newFixture(50)
	loc := world.Coord{X: 3, Y: 2}
	f.env.Requests.Register(loc)
	a := NewPlanningAgent(0, world.Coord{X: 0, Y: 0}, 3)
	f.peers(a)

	a.MakePlans(f.env)
	a.SelectPlan(f.env)
	a.Decide(f.env)

	assert.Equal(t, loc, a.T.Target)
	assert.NotEqual(t, harvest.NoBin, a.T.CarriedBin)
	assert.Zero(t, f.env.Requests.Len())
}
