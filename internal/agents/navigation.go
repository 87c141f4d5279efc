// Navigation: grid-constrained Manhattan movement, one axis per tick. Agents
// change rows only on the repository column or the rightmost boundary column.
package agents

import "github.com/talgya/orchard-sim/internal/world"

// Navigator moves agents across the grid.
type Navigator struct {
	Grid      world.Grid
	SpeedHigh int
	SpeedLow  int
}

// NewNavigator creates a navigator from the agent params.
func NewNavigator(p Params) Navigator {
	return Navigator{Grid: p.Grid, SpeedHigh: p.SpeedHigh, SpeedLow: p.SpeedLow}
}

// Speed returns cells per tick for a loaded or unloaded agent.
func (n Navigator) Speed(loaded bool) int {
	if loaded {
		return n.SpeedLow
	}
	return n.SpeedHigh
}

// Step returns the agent's position after one tick of travel from cur toward
// target. Out-of-bounds positions or targets leave the agent where it is.
func (n Navigator) Step(cur, target world.Coord, loaded bool) world.Coord {
	if !n.Grid.InBounds(cur) || !n.Grid.InBounds(target) {
		return cur
	}
	speed := n.Speed(loaded)
	next := cur

	switch {
	case target.X == 0 && cur.X != 0:
		// Heading for the repository: straight left along the current row.
		next.X = stepToward(cur.X, 0, speed)
	case cur.Y == target.Y:
		next.X = stepToward(cur.X, target.X, speed)
	case n.Grid.IsLane(cur):
		next.Y = stepToward(cur.Y, target.Y, speed)
	default:
		leftDist := cur.X
		rightDist := n.Grid.LastColumn() - cur.X
		if leftDist < rightDist {
			next.X = stepToward(cur.X, 0, speed)
		} else {
			next.X = stepToward(cur.X, n.Grid.LastColumn(), speed)
		}
	}

	return next
}

// stepToward moves v by speed toward goal without overshooting.
func stepToward(v, goal, speed int) int {
	if v < goal {
		if v+speed >= goal {
			return goal
		}
		return v + speed
	}
	if v-speed <= goal {
		return goal
	}
	return v - speed
}

// TravelTime estimates the ticks needed to cover the Manhattan distance
// between two cells at the given speed.
func TravelTime(from, to world.Coord, speed int) int {
	if speed <= 0 {
		speed = 1
	}
	d := world.Distance(from, to)
	return (d + speed - 1) / speed
}
