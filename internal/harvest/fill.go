// Bin filling: every tick each on-ground bin collects yield from the workers
// sharing its cell, and bins whose cell has run dry or who have filled up raise
// location requests.
package harvest

import (
	"math"

	"github.com/talgya/orchard-sim/internal/world"
)

// Params are the harvest constants for a run.
type Params struct {
	Capacity float64 // Bin capacity
	PickRate float64 // Yield picked per worker per tick
}

// EventKind enumerates notable outcomes of a fill step.
type EventKind uint8

const (
	EventExhausted   EventKind = iota // Cell ran dry and the workers moved on
	EventStranded                     // Cell ran dry and no cell could take the workers
	EventFullRequest                  // Bin full while yield remains; pickup requested
)

// Event is a notable outcome of a fill step.
type Event struct {
	Kind    EventKind
	Bin     BinID
	Loc     world.Coord
	Target  world.Coord // New worker location for EventExhausted
	Workers int
}

// StepResult summarises one fill step.
type StepResult struct {
	Harvested float64 // Total yield moved from the field into bins
	Events    []Event
}

// Step runs the fill state machine for every bin in registry order, then
// detects exhaustion (redistributing workers) and full bins, registering
// location requests for both.
func Step(p Params, bins *Registry, pool *Pool, field *world.Field, reqs *RequestQueue) StepResult {
	var res StepResult

	for _, b := range bins.All() {
		if !b.OnGround {
			b.FillRate = 0
			continue
		}

		n := pool.CountAt(b.Loc)
		b.FillRate = float64(n) * p.PickRate

		if field.YieldAt(b.Loc) > 0 && b.Level < p.Capacity {
			picked := field.DecreaseYieldAt(b.Loc, math.Min(b.FillRate, p.Capacity-b.Level))
			b.Level += picked
			if b.Level > p.Capacity {
				b.Level = p.Capacity
			}
			res.Harvested += picked
		}

		if n == 0 {
			continue
		}

		remaining := field.YieldAt(b.Loc)
		switch {
		case math.Round(remaining) <= 0:
			target, moved := Redistribute(pool, b.Loc, field)
			if target.IsNone() {
				res.Events = append(res.Events, Event{Kind: EventStranded, Bin: b.ID, Loc: b.Loc, Target: target, Workers: n})
				continue
			}
			reqs.Register(target)
			res.Events = append(res.Events, Event{Kind: EventExhausted, Bin: b.ID, Loc: b.Loc, Target: target, Workers: moved})
		case remaining > 0 && b.Full(p.Capacity):
			if reqs.Register(b.Loc) {
				res.Events = append(res.Events, Event{Kind: EventFullRequest, Bin: b.ID, Loc: b.Loc, Workers: n})
			}
		}
	}

	return res
}
