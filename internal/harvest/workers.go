package harvest

import "github.com/talgya/orchard-sim/internal/world"

// WorkerID is a unique identifier for a worker.
type WorkerID int

// Worker is a stationary picker pinned to one cell. Workers only move as a
// group, through Redistribute.
type Worker struct {
	ID  WorkerID    `json:"id"`
	Loc world.Coord `json:"loc"`
}

// Pool holds every worker in the orchard.
type Pool struct {
	Workers []Worker
}

// NewPool creates a pool from the given workers.
func NewPool(workers []Worker) *Pool {
	return &Pool{Workers: workers}
}

// CountAt returns the number of workers at c.
func (p *Pool) CountAt(c world.Coord) int {
	count := 0
	for _, w := range p.Workers {
		if w.Loc == c {
			count++
		}
	}
	return count
}

// MoveGroup relocates every worker at from to to and returns how many moved.
func (p *Pool) MoveGroup(from, to world.Coord) int {
	moved := 0
	for i := range p.Workers {
		if p.Workers[i].Loc != from {
			continue
		}
		p.Workers[i].Loc = to
		moved++
	}
	return moved
}

// Groups returns the distinct worker locations in first-seen order.
func (p *Pool) Groups() []world.Coord {
	seen := make(map[world.Coord]bool)
	var groups []world.Coord
	for _, w := range p.Workers {
		if seen[w.Loc] {
			continue
		}
		seen[w.Loc] = true
		groups = append(groups, w.Loc)
	}
	return groups
}

// Len returns the number of workers.
func (p *Pool) Len() int {
	return len(p.Workers)
}
