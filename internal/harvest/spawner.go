// Worker spawning: places the initial worker groups and the first bin at each
// group's location.
package harvest

import (
	"math/rand"

	"github.com/talgya/orchard-sim/internal/world"
)

// Layout selects how initial worker groups are placed.
type Layout string

const (
	LayoutFixed  Layout = "fixed"  // Groups of five on a diagonal from (3,2)
	LayoutRandom Layout = "random" // Random cells, random group sizes
)

// FixedGroupSize is the group size used by the fixed layout.
const FixedGroupSize = 5

// Spawner creates workers for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID WorkerID
}

// NewSpawner creates a worker spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng: rand.New(rand.NewSource(seed + 300)),
	}
}

// Spawn places count workers on the grid using the given layout and returns
// the pool and the distinct group locations in placement order.
func (s *Spawner) Spawn(layout Layout, count, maxGroup int, g world.Grid) (*Pool, []world.Coord) {
	if layout == LayoutRandom {
		return s.RandomGroups(count, maxGroup, g)
	}
	return s.FixedGroups(count, g)
}

// FixedGroups places groups of FixedGroupSize workers at (3,2), (4,3), ...
// wrapping inside the harvestable band on small grids.
func (s *Spawner) FixedGroups(count int, g world.Grid) (*Pool, []world.Coord) {
	var workers []Worker
	var groups []world.Coord
	band := g.Cols - 2

	for grp := 0; len(workers) < count; grp++ {
		loc := world.Coord{
			X: 1 + (2+grp)%band,
			Y: (2 + grp) % g.Rows,
		}
		for n := 0; n < FixedGroupSize && len(workers) < count; n++ {
			workers = append(workers, s.newWorker(loc))
		}
		groups = appendGroup(groups, loc)
	}

	return NewPool(workers), groups
}

// RandomGroups places groups of 1..maxGroup workers on random harvestable
// cells until count workers are placed.
func (s *Spawner) RandomGroups(count, maxGroup int, g world.Grid) (*Pool, []world.Coord) {
	if maxGroup < 1 {
		maxGroup = 1
	}
	var workers []Worker
	var groups []world.Coord

	for len(workers) < count {
		loc := world.Coord{
			X: 1 + s.rng.Intn(g.Cols-2),
			Y: s.rng.Intn(g.Rows),
		}
		size := 1 + s.rng.Intn(maxGroup)
		for n := 0; n < size && len(workers) < count; n++ {
			workers = append(workers, s.newWorker(loc))
		}
		groups = appendGroup(groups, loc)
	}

	return NewPool(workers), groups
}

func (s *Spawner) newWorker(loc world.Coord) Worker {
	w := Worker{ID: s.nextID, Loc: loc}
	s.nextID++
	return w
}

// appendGroup adds loc unless two random groups landed on the same cell, in
// which case they share one bin.
func appendGroup(groups []world.Coord, loc world.Coord) []world.Coord {
	for _, g := range groups {
		if g == loc {
			return groups
		}
	}
	return append(groups, loc)
}

// PlaceInitialBins puts one empty on-ground bin at every group location.
func PlaceInitialBins(reg *Registry, alloc *Allocator, groups []world.Coord) []*Bin {
	bins := make([]*Bin, 0, len(groups))
	for _, loc := range groups {
		bins = append(bins, reg.Create(alloc, loc, true))
	}
	return bins
}
