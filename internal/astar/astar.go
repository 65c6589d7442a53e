// Package astar finds shortest paths on the colony grid. It is the
// deterministic baseline the colony is compared against.
package astar

import (
	"container/heap"
	"errors"
	"math"

	"github.com/talgya/antcolony/internal/world"
)

// ErrNoPath is returned when the goal cannot be reached from the start.
var ErrNoPath = errors.New("astar: no path")

// Grid is the terrain view the search needs.
type Grid interface {
	InBounds(c world.Coord) bool
	Kind(c world.Coord) world.CellKind
}

// Neighborhood selects which moves the search may take.
type Neighborhood uint8

const (
	Four  Neighborhood = iota // Orthogonal moves, unit cost
	Eight                     // Orthogonal and diagonal moves, Euclidean cost
)

var diagonals = [4]world.Coord{{X: 1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: -1, Y: -1}}

// Result is a found path.
type Result struct {
	Path     []world.Coord // start..goal inclusive
	Cost     float64
	Explored int // Nodes expanded
}

// Steps returns the number of moves along the path.
func (r Result) Steps() int {
	if len(r.Path) == 0 {
		return 0
	}
	return len(r.Path) - 1
}

// Find searches from start to goal. Walls and off-grid cells are
// impassable; every other kind, food and nest included, can be crossed.
func Find(g Grid, start, goal world.Coord, hood Neighborhood) (Result, error) {
	if !passable(g, start) || !passable(g, goal) {
		return Result{}, ErrNoPath
	}

	h := func(c world.Coord) float64 {
		if hood == Eight {
			return world.Distance(c, goal)
		}
		return float64(world.Manhattan(c, goal))
	}

	open := &queue{}
	gScore := map[world.Coord]float64{start: 0}
	cameFrom := make(map[world.Coord]world.Coord)
	closed := make(map[world.Coord]bool)
	seq := 0
	heap.Push(open, &node{pos: start, f: h(start), seq: seq})

	explored := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if closed[cur.pos] {
			continue
		}
		if cur.pos == goal {
			return Result{
				Path:     reconstruct(cameFrom, start, goal),
				Cost:     gScore[goal],
				Explored: explored,
			}, nil
		}
		closed[cur.pos] = true
		explored++

		for _, step := range moves(hood) {
			next := world.Coord{X: cur.pos.X + step.X, Y: cur.pos.Y + step.Y}
			if closed[next] || !passable(g, next) {
				continue
			}
			tentative := gScore[cur.pos] + world.Distance(cur.pos, next)
			if old, seen := gScore[next]; seen && tentative >= old {
				continue
			}
			gScore[next] = tentative
			cameFrom[next] = cur.pos
			seq++
			heap.Push(open, &node{pos: next, f: tentative + h(next), g: tentative, seq: seq})
		}
	}
	return Result{Explored: explored}, ErrNoPath
}

func passable(g Grid, c world.Coord) bool {
	return g.InBounds(c) && g.Kind(c) != world.CellWall
}

func moves(hood Neighborhood) []world.Coord {
	out := world.NeighborDirections[:]
	if hood == Eight {
		out = append(append([]world.Coord(nil), out...), diagonals[:]...)
	}
	return out
}

func reconstruct(cameFrom map[world.Coord]world.Coord, start, goal world.Coord) []world.Coord {
	path := []world.Coord{goal}
	for cur := goal; cur != start; {
		cur = cameFrom[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type node struct {
	pos world.Coord
	f   float64
	g   float64
	seq int
}

// queue is a min-heap on f. Ties prefer the deeper node, then insertion order.
type queue []*node

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if math.Abs(q[i].f-q[j].f) > 1e-9 {
		return q[i].f < q[j].f
	}
	if q[i].g != q[j].g {
		return q[i].g > q[j].g
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(*node)) }

func (q *queue) Pop() any {
	old := *q
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return n
}
