// Package world provides the orchard grid, coordinates, and the yield field.
// Column 0 is the repository edge, columns [1, Cols-2] are harvestable and the
// rightmost column is a boundary lane. Column 0 and the rightmost column are the
// only columns where agents may change rows.
package world

import "fmt"

// Coord is a cell on the orchard grid. X is the column, Y is the row.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// NoCoord is the sentinel for "no location".
var NoCoord = Coord{X: -1, Y: -1}

// IsNone reports whether c is the NoCoord sentinel.
func (c Coord) IsNone() bool {
	return c == NoCoord
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Grid holds the bounds of the orchard.
type Grid struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// InBounds returns true if the coordinate lies within [0, Cols) × [0, Rows).
func (g Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < g.Cols && c.Y >= 0 && c.Y < g.Rows
}

// IsRepository returns true for the delivery edge (column 0).
func (g Grid) IsRepository(c Coord) bool {
	return c.X == 0 && g.InBounds(c)
}

// IsHarvestable returns true for cells that can carry yield and workers.
func (g Grid) IsHarvestable(c Coord) bool {
	return c.X >= 1 && c.X <= g.Cols-2 && c.Y >= 0 && c.Y < g.Rows
}

// LastColumn is the boundary column used as the right-hand transfer lane.
func (g Grid) LastColumn() int {
	return g.Cols - 1
}

// IsLane returns true if agents at c may move between rows.
func (g Grid) IsLane(c Coord) bool {
	return c.X == 0 || c.X == g.LastColumn()
}

// RepositoryFor returns the repository cell on the same row as c.
func (g Grid) RepositoryFor(c Coord) Coord {
	return Coord{X: 0, Y: c.Y}
}

// Distance returns the Manhattan distance between two coordinates.
func Distance(a, b Coord) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
