// Simulation ties together the orchard, the bins and the transport agents and
// runs them each tick.
package engine

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/talgya/orchard-sim/internal/agents"
	"github.com/talgya/orchard-sim/internal/harvest"
	"github.com/talgya/orchard-sim/internal/world"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Params are the per-run constants.
type Params struct {
	Capacity  float64
	PickRate  float64
	SpeedHigh int
	SpeedLow  int
}

// Simulation holds the complete state of one run. Everything is owned here and
// passed by reference into the harvest and agent steps; nothing is global.
type Simulation struct {
	Mode     Mode
	Params   Params
	Field    *world.Field
	Pool     *harvest.Pool
	Bins     *harvest.Registry
	Alloc    *harvest.Allocator
	Repo     *harvest.Repository
	Requests *harvest.RequestQueue
	Agents   []agents.Decider // Sorted by ID
	Events   []Event          // Recent events, bounded by maxEvents
	LastTick uint64           // Most recent tick processed
	Stats    SimStats

	// Recorders receive a snapshot after every tick.
	Recorders []Recorder

	mu sync.RWMutex // Guards the state above against API readers
}

// Event is a notable occurrence in the orchard.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "harvest", "agent", "delivery", "warning"
}

// SimStats tracks aggregate run statistics.
type SimStats struct {
	Tick            uint64  `json:"tick"`
	FieldYield      float64 `json:"field_yield"`
	Harvested       float64 `json:"harvested"`
	DeliveredBins   int     `json:"delivered_bins"`
	DeliveredYield  float64 `json:"delivered_yield"`
	ActiveBins      int     `json:"active_bins"`
	BinsOnGround    int     `json:"bins_on_ground"`
	PendingRequests int     `json:"pending_requests"`
	IdleAgents      int     `json:"idle_agents"`
	Redistributions int     `json:"redistributions"`
	Warnings        int     `json:"warnings"`
}

// Recorder consumes read-only per-tick snapshots. Errors are logged and never
// stop the run.
type Recorder interface {
	RecordTick(snap *Snapshot) error
}

// NewSimulation creates a Simulation from prepared components. Agents are
// sorted by ID.
func NewSimulation(mode Mode, field *world.Field, pool *harvest.Pool, bins *harvest.Registry,
	alloc *harvest.Allocator, ds []agents.Decider, p Params) *Simulation {
	sortDeciders(ds)
	sim := &Simulation{
		Mode:     mode,
		Params:   p,
		Field:    field,
		Pool:     pool,
		Bins:     bins,
		Alloc:    alloc,
		Repo:     &harvest.Repository{},
		Requests: &harvest.RequestQueue{},
		Agents:   ds,
	}
	sim.updateStats()
	return sim
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// Step runs one tick: bin fill, exhaustion and full-bin requests, then every
// agent in ID order. Recorders see the post-tick state.
func (s *Simulation) Step(tick uint64) {
	s.mu.Lock()
	s.LastTick = tick
	firstEvent := len(s.Events)
	repoBefore := s.Repo.Len()

	res := harvest.Step(harvest.Params{Capacity: s.Params.Capacity, PickRate: s.Params.PickRate},
		s.Bins, s.Pool, s.Field, s.Requests)
	s.Stats.Harvested += res.Harvested
	for _, ev := range res.Events {
		s.harvestEvent(tick, ev)
	}

	env := s.env(tick)
	switch s.Mode {
	case ModeAuto:
		s.stepPlanners(env)
	default:
		for _, d := range s.Agents {
			s.agentActions(tick, d.Decide(env))
		}
	}

	s.checkConsistency(tick)
	s.updateStats()

	var snap *Snapshot
	if len(s.Recorders) > 0 {
		snap = s.snapshotLocked(firstEvent, repoBefore)
	}
	s.trimEvents()
	s.mu.Unlock()

	for _, r := range s.Recorders {
		if err := r.RecordTick(snap); err != nil {
			slog.Warn("recorder failed", "tick", tick, "error", err)
		}
	}
}

// stepPlanners runs the propose-then-negotiate order: every agent proposes
// against the same state, then each selects and commits in ID order.
func (s *Simulation) stepPlanners(env *agents.Env) {
	for _, d := range s.Agents {
		if p, ok := d.(agents.Planner); ok {
			p.MakePlans(env)
		}
	}
	for _, d := range s.Agents {
		if p, ok := d.(agents.Planner); ok {
			p.SelectPlan(env)
		}
		s.agentActions(env.Tick, d.Decide(env))
	}
}

func (s *Simulation) env(tick uint64) *agents.Env {
	peers := make([]*agents.Transport, len(s.Agents))
	for i, d := range s.Agents {
		peers[i] = d.Transport()
	}
	return &agents.Env{
		Tick: tick,
		Params: agents.Params{
			Grid:      s.Field.Grid,
			Capacity:  s.Params.Capacity,
			SpeedHigh: s.Params.SpeedHigh,
			SpeedLow:  s.Params.SpeedLow,
		},
		Bins:     s.Bins,
		Repo:     s.Repo,
		Requests: s.Requests,
		Alloc:    s.Alloc,
		Field:    s.Field,
		Peers:    peers,
	}
}

func (s *Simulation) harvestEvent(tick uint64, ev harvest.Event) {
	switch ev.Kind {
	case harvest.EventExhausted:
		s.Stats.Redistributions++
		slog.Info("workers redistributed", "tick", tick, "bin", ev.Bin,
			"from", ev.Loc.String(), "to", ev.Target.String(), "workers", ev.Workers)
		s.addEvent(tick, "harvest", fmt.Sprintf("%d workers move from exhausted %s to %s", ev.Workers, ev.Loc, ev.Target))
	case harvest.EventStranded:
		slog.Debug("workers stranded", "tick", tick, "bin", ev.Bin, "x", ev.Loc.X, "y", ev.Loc.Y, "workers", ev.Workers)
	case harvest.EventFullRequest:
		slog.Debug("bin full", "tick", tick, "bin", ev.Bin, "x", ev.Loc.X, "y", ev.Loc.Y)
	}
}

func (s *Simulation) agentActions(tick uint64, actions []agents.Action) {
	for _, a := range actions {
		switch a.Kind {
		case agents.ActionDeliver:
			slog.Info("bin delivered", "tick", tick, "agent", a.AgentID, "bin", a.Bin, "repository", s.Repo.Len())
			s.addEvent(tick, "delivery", a.Detail)
		case agents.ActionIdle, agents.ActionMove, agents.ActionWait:
			slog.Debug(a.Detail, "tick", tick, "agent", a.AgentID, "x", a.Loc.X, "y", a.Loc.Y)
		default:
			slog.Debug(a.Detail, "tick", tick, "agent", a.AgentID, "bin", a.Bin)
			s.addEvent(tick, "agent", a.Detail)
		}
	}
}

// checkConsistency warns about bin ids referenced by agents but absent from
// the registry, and bins carried by more than one agent.
func (s *Simulation) checkConsistency(tick uint64) {
	carriers := make(map[harvest.BinID]agents.AgentID)
	for _, d := range s.Agents {
		t := d.Transport()
		if t.CarriedBin != harvest.NoBin {
			if _, ok := s.Bins.Get(t.CarriedBin); !ok {
				s.warn(tick, fmt.Sprintf("A%d carries unknown bin B%d", t.ID, t.CarriedBin))
			}
			if other, dup := carriers[t.CarriedBin]; dup {
				s.warn(tick, fmt.Sprintf("B%d carried by A%d and A%d", t.CarriedBin, other, t.ID))
			}
			carriers[t.CarriedBin] = t.ID
		}
		if t.TargetBin != harvest.NoBin {
			if _, ok := s.Bins.Get(t.TargetBin); !ok {
				s.warn(tick, fmt.Sprintf("A%d targets unknown bin B%d", t.ID, t.TargetBin))
			}
		}
	}
}

func (s *Simulation) warn(tick uint64, msg string) {
	s.Stats.Warnings++
	slog.Warn("inconsistent state", "tick", tick, "detail", msg)
	s.addEvent(tick, "warning", msg)
}

func (s *Simulation) addEvent(tick uint64, category, desc string) {
	s.Events = append(s.Events, Event{Tick: tick, Description: desc, Category: category})
}

// trimEvents keeps the last maxEvents events.
func (s *Simulation) trimEvents() {
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

func (s *Simulation) updateStats() {
	st := &s.Stats
	st.Tick = s.LastTick
	st.FieldYield = s.Field.TotalYield()
	st.DeliveredBins = s.Repo.Len()
	st.DeliveredYield = s.Repo.TotalYield()
	st.ActiveBins = s.Bins.Len()
	st.BinsOnGround = 0
	for _, b := range s.Bins.All() {
		if b.OnGround {
			st.BinsOnGround++
		}
	}
	st.PendingRequests = s.Requests.Len()
	st.IdleAgents = 0
	for _, d := range s.Agents {
		if d.Transport().State(s.Bins) == agents.StateIdle {
			st.IdleAgents++
		}
	}
}

// Report logs a periodic summary.
func (s *Simulation) Report(tick uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range s.Events {
		counts[e.Category]++
	}
	slog.Info("orchard report",
		"tick", tick,
		"field_yield", fmt.Sprintf("%.1f", s.Stats.FieldYield),
		"harvested", fmt.Sprintf("%.1f", s.Stats.Harvested),
		"delivered", s.Stats.DeliveredBins,
		"active_bins", s.Stats.ActiveBins,
		"requests", s.Stats.PendingRequests,
		"idle_agents", s.Stats.IdleAgents,
		"redistributions", s.Stats.Redistributions,
		"events_delivery", counts["delivery"],
		"events_warning", counts["warning"],
	)
}

// View runs fn while holding the read lock, for callers that need a
// consistent view of Field or other live state.
func (s *Simulation) View(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// GetStats returns a copy of the current statistics.
func (s *Simulation) GetStats() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats
}

// RecentEvents returns up to n of the most recent events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && len(s.Events) > n {
		start = len(s.Events) - n
	}
	out := make([]Event, len(s.Events)-start)
	copy(out, s.Events[start:])
	return out
}

func sortDeciders(ds []agents.Decider) {
	slices.SortStableFunc(ds, func(a, b agents.Decider) int {
		return cmp.Compare(a.Transport().ID, b.Transport().ID)
	})
}
