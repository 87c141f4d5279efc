package world

import "fmt"

// Field holds the remaining yield per cell. Yield only ever decreases and is
// never negative.
type Field struct {
	Grid  Grid
	yield []float64
}

// NewField creates an empty field covering the grid.
func NewField(g Grid) *Field {
	return &Field{
		Grid:  g,
		yield: make([]float64, g.Cols*g.Rows),
	}
}

func (f *Field) index(c Coord) int {
	return c.Y*f.Grid.Cols + c.X
}

// YieldAt returns the remaining yield at c, or 0 if c is out of bounds.
func (f *Field) YieldAt(c Coord) float64 {
	if !f.Grid.InBounds(c) {
		return 0
	}
	return f.yield[f.index(c)]
}

// SetYield places yield at c. Used when seeding the field; negative values are
// stored as zero.
func (f *Field) SetYield(c Coord, amount float64) {
	if !f.Grid.InBounds(c) {
		return
	}
	if amount < 0 {
		amount = 0
	}
	f.yield[f.index(c)] = amount
}

// DecreaseYieldAt removes up to amount from c and returns what was actually
// removed. The remaining yield is clamped at zero.
func (f *Field) DecreaseYieldAt(c Coord, amount float64) float64 {
	if !f.Grid.InBounds(c) || amount <= 0 {
		return 0
	}
	i := f.index(c)
	if amount > f.yield[i] {
		amount = f.yield[i]
	}
	f.yield[i] -= amount
	return amount
}

// EstimatedRemainingYield projects the yield left at c after elapsed ticks of
// harvesting at rate per tick. It is monotone non-increasing in both elapsed
// and rate and never negative.
func (f *Field) EstimatedRemainingYield(c Coord, elapsed, rate float64) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	if rate < 0 {
		rate = 0
	}
	est := f.YieldAt(c) - rate*elapsed
	if est < 0 {
		return 0
	}
	return est
}

// TotalYield returns the sum of remaining yield across the grid.
func (f *Field) TotalYield() float64 {
	total := 0.0
	for _, y := range f.yield {
		total += y
	}
	return total
}

// String returns a summary of the field.
func (f *Field) String() string {
	return fmt.Sprintf("Field(cols=%d, rows=%d, yield=%.1f)", f.Grid.Cols, f.Grid.Rows, f.TotalYield())
}
