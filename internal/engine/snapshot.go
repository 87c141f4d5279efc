package engine

import (
	"slices"

	"github.com/talgya/orchard-sim/internal/agents"
	"github.com/talgya/orchard-sim/internal/harvest"
	"github.com/talgya/orchard-sim/internal/world"
)

// Snapshot is a read-only copy of the state after one tick.
type Snapshot struct {
	Tick       uint64             `json:"tick"`
	Mode       Mode               `json:"mode"`
	Bins       []BinSample        `json:"bins"`
	Agents     []AgentSample      `json:"agents"`
	Requests   []world.Coord      `json:"requests"`
	RepoCount  int                `json:"repo_count"`
	Deliveries []harvest.Delivery `json:"deliveries,omitempty"` // Delivered during this tick
	Events     []Event            `json:"events,omitempty"`     // Raised during this tick
	Stats      SimStats           `json:"stats"`
}

// BinSample is one bin's (time, coordinate, fill level) record.
type BinSample struct {
	ID       harvest.BinID `json:"id"`
	Loc      world.Coord   `json:"loc"`
	Level    float64       `json:"level"`
	FillRate float64       `json:"fill_rate"`
	State    string        `json:"state"`
}

// AgentSample is one agent's (time, coordinate) record with its commitments.
type AgentSample struct {
	ID         agents.AgentID `json:"id"`
	Loc        world.Coord    `json:"loc"`
	Target     world.Coord    `json:"target"`
	State      string         `json:"state"`
	CarriedBin harvest.BinID  `json:"carried_bin"`
	TargetBin  harvest.BinID  `json:"target_bin"`
}

// Snapshot returns a copy of the current state. Deliveries and events cover
// the whole retained history.
func (s *Simulation) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(0, 0)
}

// snapshotLocked copies the state; events from firstEvent and deliveries from
// firstDelivery onward are included. The caller holds s.mu.
func (s *Simulation) snapshotLocked(firstEvent, firstDelivery int) *Snapshot {
	snap := &Snapshot{
		Tick:      s.LastTick,
		Mode:      s.Mode,
		Requests:  slices.Clone(s.Requests.All()),
		RepoCount: s.Repo.Len(),
		Stats:     s.Stats,
	}

	capacity := s.Bins.Capacity
	for _, b := range s.Bins.All() {
		snap.Bins = append(snap.Bins, BinSample{
			ID:       b.ID,
			Loc:      b.Loc,
			Level:    b.Level,
			FillRate: b.FillRate,
			State:    b.State(capacity).String(),
		})
	}
	for _, d := range s.Agents {
		t := d.Transport()
		snap.Agents = append(snap.Agents, AgentSample{
			ID:         t.ID,
			Loc:        t.Loc,
			Target:     t.Target,
			State:      t.State(s.Bins).String(),
			CarriedBin: t.CarriedBin,
			TargetBin:  t.TargetBin,
		})
	}

	if ds := s.Repo.Deliveries(); firstDelivery < len(ds) {
		snap.Deliveries = append(snap.Deliveries, ds[firstDelivery:]...)
	}
	if firstEvent < len(s.Events) {
		snap.Events = append(snap.Events, s.Events[firstEvent:]...)
	}
	return snap
}
