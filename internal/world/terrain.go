package world

import (
	"fmt"
	"sort"
)

// Terrain holds the grid state: cell kinds, the nest, remaining food per
// source and the completed tours that reached each source.
//
// A coordinate is an active food source iff it has an entry in food, and
// every entry is > 0. Sources that run out are removed from food and
// reclassified as CellDepletedFood in the same call.
type Terrain struct {
	width  int
	height int
	cells  []CellKind // row-major, index y*width + x
	nest   Coord

	food      map[Coord]int       // active source → remaining capacity
	totalFood int                 // capacity placed at generation
	tours     map[Coord][][]Coord // source → completed forward tours
}

// NewTerrain creates an empty grid with the nest at the given coordinate.
// Callers validate dimensions; a nest outside the grid is not placed.
func NewTerrain(width, height int, nest Coord) *Terrain {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	t := &Terrain{
		width:  width,
		height: height,
		cells:  make([]CellKind, width*height),
		nest:   nest,
		food:   make(map[Coord]int),
		tours:  make(map[Coord][][]Coord),
	}
	if t.InBounds(nest) {
		t.cells[t.index(nest)] = CellNest
	}
	return t
}

func (t *Terrain) index(c Coord) int {
	return c.Y*t.width + c.X
}

// Width returns the grid width.
func (t *Terrain) Width() int { return t.width }

// Height returns the grid height.
func (t *Terrain) Height() int { return t.height }

// Nest returns the nest coordinate.
func (t *Terrain) Nest() Coord { return t.nest }

// InBounds reports whether c lies on the grid.
func (t *Terrain) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < t.width && c.Y >= 0 && c.Y < t.height
}

// Kind returns the cell kind at c. Out-of-bounds coordinates read as walls.
func (t *Terrain) Kind(c Coord) CellKind {
	if !t.InBounds(c) {
		return CellWall
	}
	return t.cells[t.index(c)]
}

// SetWall turns an empty cell into a wall. Returns false if c is off-grid
// or not empty.
func (t *Terrain) SetWall(c Coord) bool {
	if t.Kind(c) != CellEmpty {
		return false
	}
	t.cells[t.index(c)] = CellWall
	return true
}

// AddFood places a food source with the given capacity on an empty cell.
func (t *Terrain) AddFood(c Coord, capacity int) bool {
	if capacity <= 0 || t.Kind(c) != CellEmpty {
		return false
	}
	t.cells[t.index(c)] = CellFood
	t.food[c] = capacity
	t.totalFood += capacity
	return true
}

// Neighbors returns the orthogonal in-bounds non-wall neighbours of c in
// the fixed +x, -x, +y, -y order.
func (t *Terrain) Neighbors(c Coord) []Coord {
	out := make([]Coord, 0, 4)
	for _, n := range c.Neighbors() {
		if t.InBounds(n) && t.cells[t.index(n)] != CellWall {
			out = append(out, n)
		}
	}
	return out
}

// RemainingFood returns the summed capacity of all active food sources.
func (t *Terrain) RemainingFood() int {
	total := 0
	for _, left := range t.food {
		total += left
	}
	return total
}

// TotalFood returns the capacity placed when the terrain was built.
func (t *Terrain) TotalFood() int { return t.totalFood }

// FoodCapacity returns the remaining capacity at c and whether c is an
// active food source.
func (t *Terrain) FoodCapacity(c Coord) (int, bool) {
	left, ok := t.food[c]
	return left, ok
}

// ActiveFood returns the active food sources sorted by row, then column.
func (t *Terrain) ActiveFood() []Coord {
	out := make([]Coord, 0, len(t.food))
	for c := range t.food {
		out = append(out, c)
	}
	sortCoords(out)
	return out
}

// HasFood reports whether any food source is still active.
func (t *Terrain) HasFood() bool {
	return len(t.food) > 0
}

// NearestFoodDistance returns the Euclidean distance from c to the closest
// active food source. ok is false when no source remains.
func (t *Terrain) NearestFoodDistance(c Coord) (d float64, ok bool) {
	for f := range t.food {
		fd := Distance(c, f)
		if !ok || fd < d {
			d = fd
			ok = true
		}
	}
	return d, ok
}

// ConsumeFood takes one unit from the source at c. It reports true only on
// the call that exhausts the source. Calls on coordinates that are not
// active food sources change nothing and return false.
func (t *Terrain) ConsumeFood(c Coord) bool {
	left, ok := t.food[c]
	if !ok {
		return false
	}
	left--
	if left > 0 {
		t.food[c] = left
		return false
	}
	delete(t.food, c)
	t.cells[t.index(c)] = CellDepletedFood
	return true
}

// RecordPath appends a copy of path to the tour history of the food source
// at food. Coordinates that never held food, and empty paths, are ignored.
func (t *Terrain) RecordPath(food Coord, path []Coord) bool {
	if len(path) == 0 {
		return false
	}
	if k := t.Kind(food); k != CellFood && k != CellDepletedFood {
		return false
	}
	t.tours[food] = append(t.tours[food], append([]Coord(nil), path...))
	return true
}

// Tours returns the recorded tours for one food source. The slices are
// shared with the terrain and must not be modified.
func (t *Terrain) Tours(food Coord) [][]Coord {
	return t.tours[food]
}

// ToursByFood returns the full tour history keyed by food source. The map
// is shared with the terrain and must not be modified.
func (t *Terrain) ToursByFood() map[Coord][][]Coord {
	return t.tours
}

// TourCount returns the number of tours recorded across all sources.
func (t *Terrain) TourCount() int {
	n := 0
	for _, paths := range t.tours {
		n += len(paths)
	}
	return n
}

// Kinds returns a row-major copy of the cell kinds.
func (t *Terrain) Kinds() []CellKind {
	return append([]CellKind(nil), t.cells...)
}

// Walls returns every wall coordinate, sorted.
func (t *Terrain) Walls() []Coord {
	var out []Coord
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			if t.cells[y*t.width+x] == CellWall {
				out = append(out, Coord{X: x, Y: y})
			}
		}
	}
	return out
}

// KindCounts returns a summary of cell kind distribution.
func (t *Terrain) KindCounts() map[CellKind]int {
	counts := make(map[CellKind]int)
	for _, k := range t.cells {
		counts[k]++
	}
	return counts
}

// String returns a summary of the terrain.
func (t *Terrain) String() string {
	return fmt.Sprintf("Terrain(%dx%d, nest=%s, food=%d/%d)",
		t.width, t.height, t.nest, t.RemainingFood(), t.totalFood)
}

func sortCoords(cs []Coord) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Y != cs[j].Y {
			return cs[i].Y < cs[j].Y
		}
		return cs[i].X < cs[j].X
	})
}
