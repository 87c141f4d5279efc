// Package harvest provides the stationary side of the orchard: workers, bins,
// the bin registry and repository, location requests, and the per-tick fill and
// worker-redistribution rules.
package harvest

import "github.com/talgya/orchard-sim/internal/world"

// BinID uniquely identifies a bin. IDs are assigned monotonically per run.
type BinID int

// NoBin is the sentinel for "no bin".
const NoBin BinID = -1

// BinState is the fill state of a bin.
type BinState uint8

const (
	BinFilling     BinState = iota // On the ground, below capacity
	BinFullWaiting                 // On the ground, at capacity, waiting for pickup
	BinCarried                     // Carried by a transport agent
)

// String returns a human-readable name for a bin state.
func (s BinState) String() string {
	switch s {
	case BinFilling:
		return "filling"
	case BinFullWaiting:
		return "full"
	case BinCarried:
		return "carried"
	default:
		return "unknown"
	}
}

// Bin is a capacity-bounded yield container.
type Bin struct {
	ID       BinID       `json:"id"`
	Loc      world.Coord `json:"loc"`
	Level    float64     `json:"level"`     // 0 ≤ Level ≤ capacity
	FillRate float64     `json:"fill_rate"` // Recomputed every tick from co-located workers
	OnGround bool        `json:"on_ground"` // False while carried
}

// Full reports whether the bin is at or above capacity.
func (b *Bin) Full(capacity float64) bool {
	return b.Level >= capacity
}

// State derives the fill state from the bin's flags.
func (b *Bin) State(capacity float64) BinState {
	switch {
	case !b.OnGround:
		return BinCarried
	case b.Full(capacity):
		return BinFullWaiting
	default:
		return BinFilling
	}
}
