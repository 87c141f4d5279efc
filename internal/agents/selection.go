// Target selection: which bins and locations an idle agent may claim, and
// the greedy heuristics choosing among them.
package agents

import (
	"math"

	"github.com/talgya/orchard-sim/internal/harvest"
	"github.com/talgya/orchard-sim/internal/world"
)

// UnclaimedBins returns the active bins, in creation order, that no other
// agent is carrying, targeting, or has published as its planned bin.
func UnclaimedBins(self AgentID, bins *harvest.Registry, peers []*Transport) []*harvest.Bin {
	claimed := make(map[harvest.BinID]bool)
	for _, p := range peers {
		if p.ID == self {
			continue
		}
		claimed[p.CarriedBin] = true
		claimed[p.TargetBin] = true
		claimed[p.PlannedBin] = true
	}

	var out []*harvest.Bin
	for _, b := range bins.All() {
		if !claimed[b.ID] {
			out = append(out, b)
		}
	}
	return out
}

// ClosestFullBin returns the nearest bin at or above capacity. Ties keep the
// earliest bin. Returns nil if none is full.
func ClosestFullBin(from world.Coord, candidates []*harvest.Bin, capacity float64) *harvest.Bin {
	var best *harvest.Bin
	minDist := math.MaxInt
	for _, b := range candidates {
		if !b.Full(capacity) {
			continue
		}
		if d := world.Distance(from, b.Loc); d < minDist {
			best = b
			minDist = d
		}
	}
	return best
}

// ProjectedLevel estimates a bin's fill level when an agent leaving from
// reaches it travelling at speed.
func ProjectedLevel(from world.Coord, b *harvest.Bin, speed int) float64 {
	eta := TravelTime(from, b.Loc, speed)
	return b.Level + b.FillRate*float64(eta)
}

// SoonestFullBin returns the bin with the greatest projected fill level at
// arrival. Ties keep the earliest bin. Bins that are not filling can never
// complete and are skipped, as are bins whose projection is zero.
func SoonestFullBin(from world.Coord, candidates []*harvest.Bin, speed int) *harvest.Bin {
	var best *harvest.Bin
	maxLevel := 0.0
	for _, b := range candidates {
		if b.FillRate <= 0 {
			continue
		}
		if est := ProjectedLevel(from, b, speed); est > maxLevel {
			best = b
			maxLevel = est
		}
	}
	return best
}

// NeedsReplacement reports whether yield is projected to remain at the bin's
// cell when an agent leaving from arrives, so an empty bin should come along.
func NeedsReplacement(from world.Coord, b *harvest.Bin, field Field, speed int) bool {
	eta := float64(TravelTime(from, b.Loc, speed))
	return field.EstimatedRemainingYield(b.Loc, eta, b.FillRate) > 0
}

// LocationCovered reports whether another agent is already heading to loc
// with an empty bin, or has published loc as its planned location.
func LocationCovered(self AgentID, loc world.Coord, bins *harvest.Registry, peers []*Transport) bool {
	for _, p := range peers {
		if p.ID == self {
			continue
		}
		if p.PlannedLoc == loc {
			return true
		}
		if p.Target != loc || p.CarriedBin == harvest.NoBin {
			continue
		}
		if b, ok := bins.Get(p.CarriedBin); ok && b.Level == 0 {
			return true
		}
	}
	return false
}
