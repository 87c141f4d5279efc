package harvest

import "github.com/talgya/orchard-sim/internal/world"

// RequestQueue holds coordinates flagged as needing a bin, in registration
// order. A coordinate appears at most once.
type RequestQueue struct {
	locs []world.Coord
}

// Register adds loc unless it is already queued. Returns true if added.
func (q *RequestQueue) Register(loc world.Coord) bool {
	if loc.IsNone() {
		return false
	}
	for _, l := range q.locs {
		if l == loc {
			return false
		}
	}
	q.locs = append(q.locs, loc)
	return true
}

// First returns the oldest pending request.
func (q *RequestQueue) First() (world.Coord, bool) {
	if len(q.locs) == 0 {
		return world.NoCoord, false
	}
	return q.locs[0], true
}

// Remove deletes loc from the queue. Returns true if it was present.
func (q *RequestQueue) Remove(loc world.Coord) bool {
	for i, l := range q.locs {
		if l == loc {
			q.locs = append(q.locs[:i], q.locs[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether loc is pending.
func (q *RequestQueue) Contains(loc world.Coord) bool {
	for _, l := range q.locs {
		if l == loc {
			return true
		}
	}
	return false
}

// Len returns the number of pending requests.
func (q *RequestQueue) Len() int {
	return len(q.locs)
}

// All returns the pending requests in queue order.
func (q *RequestQueue) All() []world.Coord {
	return q.locs
}
