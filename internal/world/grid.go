// Package world provides the foraging grid: coordinates, cell kinds, food
// bookkeeping and terrain generation.
package world

import (
	"fmt"
	"math"
)

// Coord is a cell position on the grid. Valid coordinates satisfy
// 0 <= X < width and 0 <= Y < height.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String returns the coordinate as "(x,y)".
func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// NeighborDirections defines the four orthogonal offsets in enumeration
// order: +x, -x, +y, -y. Candidate order feeds the roulette wheel, so it
// must never change.
var NeighborDirections = [4]Coord{
	{X: 1, Y: 0},
	{X: -1, Y: 0},
	{X: 0, Y: 1},
	{X: 0, Y: -1},
}

// Neighbors returns the four orthogonally adjacent coordinates, unfiltered.
func (c Coord) Neighbors() [4]Coord {
	var result [4]Coord
	for i, dir := range NeighborDirections {
		result[i] = Coord{X: c.X + dir.X, Y: c.Y + dir.Y}
	}
	return result
}

// Distance returns the Euclidean distance between two coordinates.
func Distance(a, b Coord) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

// Manhattan returns the 4-neighbourhood step distance between two coordinates.
func Manhattan(a, b Coord) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// CellKind classifies a grid cell.
type CellKind uint8

const (
	CellEmpty        CellKind = iota // Passable, nothing here
	CellWall                         // Impassable, immutable once generated
	CellNest                         // The single colony nest
	CellFood                         // Food source with remaining capacity
	CellDepletedFood                 // Exhausted food source, never refilled
)

// String returns a human-readable name for a cell kind.
func (k CellKind) String() string {
	switch k {
	case CellEmpty:
		return "Empty"
	case CellWall:
		return "Wall"
	case CellNest:
		return "Nest"
	case CellFood:
		return "Food"
	case CellDepletedFood:
		return "DepletedFood"
	default:
		return "Unknown"
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
