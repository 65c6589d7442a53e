// Package pheromone provides the shared trail field the colony reads and
// reinforces.
package pheromone

import (
	"github.com/talgya/antcolony/internal/world"
)

// Field is a dense scalar value per grid cell. Values never go negative.
type Field struct {
	width  int
	height int
	tau0   float64
	values []float64 // row-major, index y*width + x
}

// New creates a field with every cell set to tau0.
func New(width, height int, tau0 float64) *Field {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	if tau0 < 0 {
		tau0 = 0
	}
	f := &Field{
		width:  width,
		height: height,
		tau0:   tau0,
		values: make([]float64, width*height),
	}
	for i := range f.values {
		f.values[i] = tau0
	}
	return f
}

// Tau0 returns the initial trail value.
func (f *Field) Tau0() float64 { return f.tau0 }

func (f *Field) index(c world.Coord) (int, bool) {
	if c.X < 0 || c.X >= f.width || c.Y < 0 || c.Y >= f.height {
		return 0, false
	}
	return c.Y*f.width + c.X, true
}

// At returns the value at c, or 0 off-grid.
func (f *Field) At(c world.Coord) float64 {
	i, ok := f.index(c)
	if !ok {
		return 0
	}
	return f.values[i]
}

// Set writes v at c. Negative values are stored as 0.
func (f *Field) Set(c world.Coord, v float64) {
	i, ok := f.index(c)
	if !ok {
		return
	}
	if v < 0 {
		v = 0
	}
	f.values[i] = v
}

// Evaporate multiplies every cell by (1 - rho). rho is clamped to [0, 1].
func (f *Field) Evaporate(rho float64) {
	if rho <= 0 {
		return
	}
	if rho > 1 {
		rho = 1
	}
	keep := 1 - rho
	for i := range f.values {
		f.values[i] *= keep
	}
}

// Deposit adds amount to every coordinate of path. Repeated coordinates
// receive the amount once per occurrence.
func (f *Field) Deposit(path []world.Coord, amount float64) {
	if amount <= 0 {
		return
	}
	for _, c := range path {
		if i, ok := f.index(c); ok {
			f.values[i] += amount
		}
	}
}

// Reset sets every coordinate of path back to the initial value.
func (f *Field) Reset(path []world.Coord) {
	for _, c := range path {
		f.Set(c, f.tau0)
	}
}

// Values returns a row-major copy of the field.
func (f *Field) Values() []float64 {
	return append([]float64(nil), f.values...)
}

// Max returns the largest value in the field.
func (f *Field) Max() float64 {
	m := 0.0
	for _, v := range f.values {
		if v > m {
			m = v
		}
	}
	return m
}

// Sum returns the total trail mass.
func (f *Field) Sum() float64 {
	total := 0.0
	for _, v := range f.values {
		total += v
	}
	return total
}
