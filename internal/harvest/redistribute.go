// Worker redistribution: when a cell runs dry, the whole group working it
// moves to a new cell chosen greedily: the nearest free productive cell on the
// same row, then rows below, then rows above, and only then the least crowded
// productive group.
package harvest

import "github.com/talgya/orchard-sim/internal/world"

// FindNewLocation picks the cell the workers at exhausted should move to.
// Returns world.NoCoord if no cell qualifies.
func FindNewLocation(pool *Pool, exhausted world.Coord, field *world.Field) world.Coord {
	g := field.Grid
	free := func(c world.Coord) bool {
		return field.YieldAt(c) > 0 && pool.CountAt(c) == 0
	}

	// Same row, to the right.
	for c := exhausted.X + 1; c <= g.Cols-2; c++ {
		loc := world.Coord{X: c, Y: exhausted.Y}
		if free(loc) {
			return loc
		}
	}

	// Same row, to the left.
	for c := exhausted.X - 1; c > 0; c-- {
		loc := world.Coord{X: c, Y: exhausted.Y}
		if free(loc) {
			return loc
		}
	}

	// Rows below, each scanned from the rightmost harvestable column.
	for r := exhausted.Y + 1; r < g.Rows; r++ {
		for c := g.Cols - 2; c > 0; c-- {
			loc := world.Coord{X: c, Y: r}
			if free(loc) {
				return loc
			}
		}
	}

	// Rows above.
	for r := exhausted.Y - 1; r >= 0; r-- {
		for c := g.Cols - 2; c > 0; c-- {
			loc := world.Coord{X: c, Y: r}
			if free(loc) {
				return loc
			}
		}
	}

	// Every productive cell is already worked: join the group with the most
	// yield per worker. Unworked cells reaching this point have no yield.
	bestRatio := 0.0
	best := world.NoCoord
	for r := 0; r < g.Rows; r++ {
		for c := 1; c <= g.Cols-2; c++ {
			loc := world.Coord{X: c, Y: r}
			if loc == exhausted {
				continue
			}
			n := pool.CountAt(loc)
			if n == 0 {
				continue
			}
			ratio := field.YieldAt(loc) / float64(n)
			if ratio > bestRatio {
				bestRatio = ratio
				best = loc
			}
		}
	}
	return best
}

// Redistribute moves the group at exhausted to a new location and returns it,
// along with the number of workers moved. Workers stay put when no location
// qualifies.
func Redistribute(pool *Pool, exhausted world.Coord, field *world.Field) (world.Coord, int) {
	target := FindNewLocation(pool, exhausted, field)
	if target.IsNone() {
		return target, 0
	}
	return target, pool.MoveGroup(exhausted, target)
}
