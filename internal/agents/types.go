// Package agents provides the transport agents that ferry bins between harvest
// sites and the repository, their navigation rule, and the two decision
// variants: rule-based and planning.
package agents

import (
	"github.com/talgya/orchard-sim/internal/harvest"
	"github.com/talgya/orchard-sim/internal/world"
)

// AgentID is a unique identifier for a transport agent. Agents act in
// ascending ID order within a tick.
type AgentID int

// State is the derived decision state of a transport agent.
type State uint8

const (
	StateIdle       State = iota // No target bin, no carried bin
	StateEnRoute                 // Heading to a target bin, maybe with an empty replacement
	StateWaiting                 // At the target bin, waiting for it to fill
	StateCarrying                // Carrying a full bin to the repository
	StateDelivering              // Carrying an empty bin to a location request
	StateHolding                 // Carrying an empty bin with nowhere to take it
)

// String returns a human-readable name for a state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnRoute:
		return "en_route"
	case StateWaiting:
		return "waiting"
	case StateCarrying:
		return "carrying"
	case StateDelivering:
		return "delivering"
	case StateHolding:
		return "holding"
	default:
		return "unknown"
	}
}

// Transport is the peer-visible state of a transport agent. Other agents read
// it when deciding which bins and locations are already claimed.
type Transport struct {
	ID         AgentID       `json:"id"`
	Loc        world.Coord   `json:"loc"`
	Target     world.Coord   `json:"target"`
	CarriedBin harvest.BinID `json:"carried_bin"`
	TargetBin  harvest.BinID `json:"target_bin"`

	// Published by planning agents between SelectPlan and the commit.
	PlannedBin harvest.BinID `json:"planned_bin"`
	PlannedLoc world.Coord   `json:"planned_loc"`
}

// NewTransport creates an idle transport agent at loc.
func NewTransport(id AgentID, loc world.Coord) Transport {
	return Transport{
		ID:         id,
		Loc:        loc,
		Target:     world.NoCoord,
		CarriedBin: harvest.NoBin,
		TargetBin:  harvest.NoBin,
		PlannedBin: harvest.NoBin,
		PlannedLoc: world.NoCoord,
	}
}

// Idle reports whether the agent has neither a target bin nor a carried bin.
func (t *Transport) Idle() bool {
	return t.TargetBin == harvest.NoBin && t.CarriedBin == harvest.NoBin
}

// Reset clears the agent's commitments.
func (t *Transport) Reset() {
	t.Target = world.NoCoord
	t.CarriedBin = harvest.NoBin
	t.TargetBin = harvest.NoBin
}

// State derives the agent's decision state from its commitments and the bins.
func (t *Transport) State(bins *harvest.Registry) State {
	carried, hasCarried := bins.Get(t.CarriedBin)
	switch {
	case t.TargetBin == harvest.NoBin && !hasCarried:
		return StateIdle
	case hasCarried && (t.CarriedBin == t.TargetBin || carried.Full(bins.Capacity)):
		return StateCarrying
	case t.TargetBin != harvest.NoBin:
		if target, ok := bins.Get(t.TargetBin); ok && target.Loc == t.Loc {
			return StateWaiting
		}
		return StateEnRoute
	case t.Target.IsNone():
		return StateHolding
	default:
		return StateDelivering
	}
}

// Params are the agent tunables shared by both decision variants.
type Params struct {
	Grid      world.Grid
	Capacity  float64 // Bin capacity
	SpeedHigh int     // Cells per tick when empty-handed or carrying an empty bin
	SpeedLow  int     // Cells per tick when carrying yield
}

// Field is the yield query surface agents need.
type Field interface {
	YieldAt(c world.Coord) float64
	EstimatedRemainingYield(c world.Coord, elapsed, rate float64) float64
}

// Env is everything an agent observes and mutates during its turn. The bin
// registry, repository, request queue and allocator are shared by every agent
// in the tick; mutations are visible to agents acting later.
type Env struct {
	Tick     uint64
	Params   Params
	Bins     *harvest.Registry
	Repo     *harvest.Repository
	Requests *harvest.RequestQueue
	Alloc    *harvest.Allocator
	Field    Field
	Peers    []*Transport // All agents, including the one acting
}

// ActionKind enumerates what an agent did during its turn.
type ActionKind uint8

const (
	ActionIdle       ActionKind = iota
	ActionClaimBin              // Committed to retrieve a bin
	ActionClaimLoc              // Committed to bring an empty bin to a location request
	ActionNewBin                // Took a fresh empty bin
	ActionMove                  // Moved toward its target
	ActionWait                  // Waiting for the target bin to fill
	ActionPickup                // Picked up the full target bin
	ActionDropBin               // Left an empty bin on the ground
	ActionRelease               // Gave up on a bin that stopped filling
	ActionDeliver               // Delivered a full bin to the repository
)

// Action records one step of an agent's turn.
type Action struct {
	AgentID AgentID
	Kind    ActionKind
	Bin     harvest.BinID
	Loc     world.Coord
	Detail  string // Human-readable description for the event log
}

// Decider is the capability every transport agent variant exposes.
type Decider interface {
	// Transport returns the agent's live, peer-visible state.
	Transport() *Transport
	// Decide runs the agent's turn against the shared state.
	Decide(env *Env) []Action
}

// Planner is a Decider that proposes plans before committing. MakePlans must
// not mutate shared state; SelectPlan resolves conflicts against peers before
// Decide applies the chosen plan.
type Planner interface {
	Decider
	MakePlans(env *Env)
	SelectPlan(env *Env)
}
