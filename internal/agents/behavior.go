// Transport agent behavior: the shared mechanics every decision variant uses
// once it has committed to something: claiming, travelling, waiting, picking
// up, dropping empty bins and delivering to the repository.
package agents

import (
	"fmt"
	"log/slog"

	"github.com/talgya/orchard-sim/internal/harvest"
	"github.com/talgya/orchard-sim/internal/world"
)

// turn carries the state of one agent's Decide call.
type turn struct {
	t       *Transport
	env     *Env
	nav     Navigator
	actions []Action
}

func newTurn(t *Transport, env *Env) *turn {
	return &turn{t: t, env: env, nav: NewNavigator(env.Params)}
}

func (tn *turn) record(kind ActionKind, bin harvest.BinID, detail string) {
	tn.actions = append(tn.actions, Action{
		AgentID: tn.t.ID,
		Kind:    kind,
		Bin:     bin,
		Loc:     tn.t.Loc,
		Detail:  detail,
	})
}

// needsAssignment reports whether the agent should look for work: it is idle,
// or it holds an empty bin with nowhere to take it.
func needsAssignment(t *Transport, bins *harvest.Registry) bool {
	s := t.State(bins)
	return s == StateIdle || s == StateHolding
}

// spare returns the empty bin the agent is holding, if any.
func (tn *turn) spare() *harvest.Bin {
	b, ok := tn.env.Bins.Get(tn.t.CarriedBin)
	if !ok || b.Level > 0 {
		return nil
	}
	return b
}

// claimBin commits the agent to retrieving b, taking an empty replacement
// along when one is needed and the agent is not already holding one.
func (tn *turn) claimBin(b *harvest.Bin, replacement bool) {
	t := tn.t
	t.TargetBin = b.ID
	t.Target = b.Loc
	tn.record(ActionClaimBin, b.ID, fmt.Sprintf("A%d targets B%d at %s", t.ID, b.ID, b.Loc))

	if replacement && tn.spare() == nil {
		nb := tn.env.Bins.Create(tn.env.Alloc, t.Loc, false)
		t.CarriedBin = nb.ID
		tn.record(ActionNewBin, nb.ID, fmt.Sprintf("A%d takes new bin B%d", t.ID, nb.ID))
	}
}

// claimLocation commits the agent to bringing an empty bin to loc and consumes
// the location request.
func (tn *turn) claimLocation(loc world.Coord) {
	t := tn.t
	if tn.spare() == nil {
		nb := tn.env.Bins.Create(tn.env.Alloc, t.Loc, false)
		t.CarriedBin = nb.ID
		tn.record(ActionNewBin, nb.ID, fmt.Sprintf("A%d takes new bin B%d", t.ID, nb.ID))
	}
	t.TargetBin = harvest.NoBin
	t.Target = loc
	tn.env.Requests.Remove(loc)
	tn.record(ActionClaimLoc, t.CarriedBin, fmt.Sprintf("A%d carries B%d to %s", t.ID, t.CarriedBin, loc))
}

// move advances the agent one tick toward its target, taking carried along.
func (tn *turn) move(carried *harvest.Bin) {
	t := tn.t
	loaded := carried != nil && carried.Level > 0
	from := t.Loc
	t.Loc = tn.nav.Step(t.Loc, t.Target, loaded)
	if carried != nil {
		carried.Loc = t.Loc
	}
	if t.Loc != from {
		tn.record(ActionMove, t.CarriedBin, fmt.Sprintf("A%d moves %s -> %s, target %s", t.ID, from, t.Loc, t.Target))
	}
}

// drop leaves b on the ground at the agent's position.
func (tn *turn) drop(b *harvest.Bin) {
	b.Loc = tn.t.Loc
	b.OnGround = true
	tn.record(ActionDropBin, b.ID, fmt.Sprintf("A%d leaves B%d at %s", tn.t.ID, b.ID, tn.t.Loc))
}

// advance runs the committed part of the state machine: travel, wait, pick up
// or drop.
func (tn *turn) advance() {
	t := tn.t
	bins := tn.env.Bins
	capacity := tn.env.Params.Capacity
	grid := tn.env.Params.Grid

	carried, hasCarried := bins.Get(t.CarriedBin)
	if t.CarriedBin != harvest.NoBin && !hasCarried {
		slog.Warn("carried bin missing from registry", "tick", tn.env.Tick, "agent", t.ID, "bin", t.CarriedBin)
		t.CarriedBin = harvest.NoBin
	}

	switch {
	case hasCarried && (t.CarriedBin == t.TargetBin || carried.Full(capacity)):
		t.Target = grid.RepositoryFor(t.Loc)
		tn.move(carried)

	case t.TargetBin != harvest.NoBin:
		target, ok := bins.Get(t.TargetBin)
		if !ok {
			slog.Warn("target bin missing from registry", "tick", tn.env.Tick, "agent", t.ID, "bin", t.TargetBin)
			tn.record(ActionRelease, t.TargetBin, fmt.Sprintf("A%d lost track of B%d", t.ID, t.TargetBin))
			t.TargetBin = harvest.NoBin
			t.Target = world.NoCoord
			return
		}
		t.Target = target.Loc
		if t.Loc != target.Loc {
			tn.move(carried)
			return
		}

		if target.Full(capacity) {
			if hasCarried {
				tn.drop(carried)
				tn.env.Requests.Remove(t.Loc)
			}
			target.OnGround = false
			target.FillRate = 0
			t.CarriedBin = target.ID
			t.Target = grid.RepositoryFor(t.Loc)
			tn.record(ActionPickup, target.ID, fmt.Sprintf("A%d picks up B%d at %s", t.ID, target.ID, target.Loc))
			tn.move(target)
			return
		}

		if target.FillRate <= 0 {
			// Nobody is picking into it any more; it will never fill.
			tn.record(ActionRelease, target.ID, fmt.Sprintf("A%d gives up on stalled B%d", t.ID, target.ID))
			t.TargetBin = harvest.NoBin
			t.Target = world.NoCoord
			return
		}
		tn.record(ActionWait, target.ID, fmt.Sprintf("A%d waits for B%d (%.1f)", t.ID, target.ID, target.Level))

	case hasCarried:
		if t.Target.IsNone() {
			return
		}
		if t.Loc == t.Target {
			tn.drop(carried)
			t.Reset()
			return
		}
		tn.move(carried)
	}
}

// deliver hands a full carried bin to the repository when the agent stands on
// the repository column.
func (tn *turn) deliver() {
	t := tn.t
	if !tn.env.Params.Grid.IsRepository(t.Loc) || t.CarriedBin == harvest.NoBin {
		return
	}
	b, ok := tn.env.Bins.Get(t.CarriedBin)
	if !ok || !b.Full(tn.env.Params.Capacity) {
		return
	}
	tn.env.Repo.Append(*b, tn.env.Tick)
	tn.env.Bins.Remove(b.ID)
	tn.record(ActionDeliver, b.ID, fmt.Sprintf("A%d puts B%d in the repository", t.ID, b.ID))
	t.Reset()
}

// RuleAgent is the rule-based transport agent: greedy target selection
// followed by direct execution.
type RuleAgent struct {
	T Transport
}

// NewRuleAgent creates an idle rule-based agent at loc.
func NewRuleAgent(id AgentID, loc world.Coord) *RuleAgent {
	return &RuleAgent{T: NewTransport(id, loc)}
}

// Transport returns the agent's live state.
func (a *RuleAgent) Transport() *Transport {
	return &a.T
}

// Decide runs the agent's turn.
func (a *RuleAgent) Decide(env *Env) []Action {
	tn := newTurn(&a.T, env)

	if needsAssignment(&a.T, env.Bins) && !a.selectTarget(tn) {
		if len(tn.actions) == 0 {
			tn.record(ActionIdle, harvest.NoBin, fmt.Sprintf("A%d is idle", a.T.ID))
		}
		return tn.actions
	}

	tn.advance()
	tn.deliver()
	return tn.actions
}

// selectTarget picks work for an idle agent: the closest full bin, else the
// bin projected to be fullest on arrival, else the oldest location request.
func (a *RuleAgent) selectTarget(tn *turn) bool {
	env := tn.env
	t := &a.T

	unclaimed := UnclaimedBins(t.ID, env.Bins, env.Peers)
	if len(unclaimed) > 0 {
		b := ClosestFullBin(t.Loc, unclaimed, env.Params.Capacity)
		if b == nil {
			b = SoonestFullBin(t.Loc, unclaimed, env.Params.SpeedLow)
		}
		if b != nil {
			tn.claimBin(b, NeedsReplacement(t.Loc, b, env.Field, env.Params.SpeedLow))
			return true
		}
	}

	loc, ok := env.Requests.First()
	if !ok {
		return false
	}
	if LocationCovered(t.ID, loc, env.Bins, env.Peers) {
		env.Requests.Remove(loc)
		tn.record(ActionIdle, harvest.NoBin, fmt.Sprintf("A%d drops request %s, already covered", t.ID, loc))
		return false
	}
	tn.claimLocation(loc)
	return true
}
