// Planning agents: propose-then-negotiate variant. Every agent first proposes
// a ranked list of candidate plans against the tick's shared state without
// touching it. Then, in ID order, each agent selects its best plan that does
// not conflict with what earlier agents have committed or published, and
// commits it through the same mechanics as the rule-based agent.
package agents

import (
	"fmt"
	"math"
	"sort"

	"github.com/talgya/orchard-sim/internal/harvest"
	"github.com/talgya/orchard-sim/internal/world"
)

// requestWeight scales location-request plans below bin pickups of similar
// reach, so full bins are cleared before new sites are opened.
const requestWeight = 0.5

// PlanKind enumerates the kinds of plan an agent can propose.
type PlanKind uint8

const (
	PlanPickup       PlanKind = iota // Retrieve a bin, possibly bringing a replacement
	PlanServeRequest                 // Bring an empty bin to a location request
)

// Plan is one candidate course of action.
type Plan struct {
	Kind        PlanKind      `json:"kind"`
	Bin         harvest.BinID `json:"bin"`
	Loc         world.Coord   `json:"loc"`
	Replacement bool          `json:"replacement"`
	ETA         int           `json:"eta"`
	Score       float64       `json:"score"`
}

// PlanningAgent proposes up to Depth plans per tick and negotiates one.
type PlanningAgent struct {
	T     Transport
	Depth int

	candidates []Plan
	selected   Plan
	chosen     bool
}

// NewPlanningAgent creates an idle planning agent at loc.
func NewPlanningAgent(id AgentID, loc world.Coord, depth int) *PlanningAgent {
	if depth < 1 {
		depth = 1
	}
	return &PlanningAgent{T: NewTransport(id, loc), Depth: depth}
}

// Transport returns the agent's live state.
func (a *PlanningAgent) Transport() *Transport {
	return &a.T
}

// Candidates returns the plans proposed by the last MakePlans call.
func (a *PlanningAgent) Candidates() []Plan {
	return a.candidates
}

// Selected returns the plan chosen by the last SelectPlan call.
func (a *PlanningAgent) Selected() (Plan, bool) {
	return a.selected, a.chosen
}

// MakePlans ranks candidate plans for an agent that needs work. It reads the
// shared state only.
func (a *PlanningAgent) MakePlans(env *Env) {
	a.candidates = a.candidates[:0]
	a.chosen = false
	if !needsAssignment(&a.T, env.Bins) {
		return
	}

	from := a.T.Loc
	capacity := env.Params.Capacity

	for _, b := range UnclaimedBins(a.T.ID, env.Bins, env.Peers) {
		var level float64
		switch {
		case b.Full(capacity):
			level = capacity
		case b.FillRate <= 0:
			continue
		default:
			level = math.Min(capacity, ProjectedLevel(from, b, env.Params.SpeedLow))
		}
		if level <= 0 {
			continue
		}
		eta := TravelTime(from, b.Loc, env.Params.SpeedLow)
		score := level / float64(eta+1)
		if b.Full(capacity) {
			score += capacity
		}
		a.candidates = append(a.candidates, Plan{
			Kind:        PlanPickup,
			Bin:         b.ID,
			Loc:         b.Loc,
			Replacement: NeedsReplacement(from, b, env.Field, env.Params.SpeedLow),
			ETA:         eta,
			Score:       score,
		})
	}

	for _, loc := range env.Requests.All() {
		eta := TravelTime(from, loc, env.Params.SpeedHigh)
		yield := math.Min(capacity, env.Field.YieldAt(loc))
		a.candidates = append(a.candidates, Plan{
			Kind:  PlanServeRequest,
			Bin:   harvest.NoBin,
			Loc:   loc,
			ETA:   eta,
			Score: requestWeight * yield / float64(eta+1),
		})
	}

	sort.SliceStable(a.candidates, func(i, j int) bool {
		return a.candidates[i].Score > a.candidates[j].Score
	})
	if len(a.candidates) > a.Depth {
		a.candidates = a.candidates[:a.Depth]
	}
}

// SelectPlan picks the best candidate that does not conflict with the
// commitments or published plans of other agents, and publishes it.
func (a *PlanningAgent) SelectPlan(env *Env) {
	a.chosen = false
	a.T.PlannedBin = harvest.NoBin
	a.T.PlannedLoc = world.NoCoord

	for _, p := range a.candidates {
		if a.conflicts(p, env) {
			continue
		}
		a.selected = p
		a.chosen = true
		if p.Kind == PlanPickup {
			a.T.PlannedBin = p.Bin
		} else {
			a.T.PlannedLoc = p.Loc
		}
		return
	}
}

func (a *PlanningAgent) conflicts(p Plan, env *Env) bool {
	switch p.Kind {
	case PlanPickup:
		if _, ok := env.Bins.Get(p.Bin); !ok {
			return true
		}
		for _, b := range UnclaimedBins(a.T.ID, env.Bins, env.Peers) {
			if b.ID == p.Bin {
				return false
			}
		}
		return true
	default:
		return !env.Requests.Contains(p.Loc) || LocationCovered(a.T.ID, p.Loc, env.Bins, env.Peers)
	}
}

// Decide commits the selected plan, if any, then runs the shared mechanics.
func (a *PlanningAgent) Decide(env *Env) []Action {
	tn := newTurn(&a.T, env)
	defer a.clearPlan()

	if needsAssignment(&a.T, env.Bins) {
		if !a.chosen || !a.commit(tn) {
			if len(tn.actions) == 0 {
				tn.record(ActionIdle, harvest.NoBin, fmt.Sprintf("A%d is idle", a.T.ID))
			}
			return tn.actions
		}
	}

	tn.advance()
	tn.deliver()
	return tn.actions
}

func (a *PlanningAgent) commit(tn *turn) bool {
	p := a.selected
	switch p.Kind {
	case PlanPickup:
		b, ok := tn.env.Bins.Get(p.Bin)
		if !ok {
			return false
		}
		tn.claimBin(b, p.Replacement)
	default:
		if !tn.env.Requests.Contains(p.Loc) {
			return false
		}
		tn.claimLocation(p.Loc)
	}
	return true
}

func (a *PlanningAgent) clearPlan() {
	a.candidates = a.candidates[:0]
	a.chosen = false
	a.T.PlannedBin = harvest.NoBin
	a.T.PlannedLoc = world.NoCoord
}
