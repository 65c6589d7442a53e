package astar_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/antcolony/internal/astar"
	"github.com/talgya/antcolony/internal/world"
)

func TestOpenGridFour(t *testing.T) {
	tr := world.NewTerrain(10, 10, world.Coord{X: 0, Y: 0})
	goal := world.Coord{X: 6, Y: 4}

	res, err := astar.Find(tr, tr.Nest(), goal, astar.Four)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Steps())
	assert.InDelta(t, 10.0, res.Cost, 1e-9)
	assert.Equal(t, tr.Nest(), res.Path[0])
	assert.Equal(t, goal, res.Path[len(res.Path)-1])
	for i := 1; i < len(res.Path); i++ {
		assert.Equal(t, 1, world.Manhattan(res.Path[i-1], res.Path[i]))
	}
}

func TestOpenGridEight(t *testing.T) {
	tr := world.NewTerrain(10, 10, world.Coord{X: 0, Y: 0})
	res, err := astar.Find(tr, world.Coord{X: 0, Y: 0}, world.Coord{X: 5, Y: 5}, astar.Eight)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Steps())
	assert.InDelta(t, 5*math.Sqrt2, res.Cost, 1e-9)
}

func TestRoutesAroundWall(t *testing.T) {
	// Vertical wall at x=2 from y=0..3 leaves a gap at y=4.
	tr := world.NewTerrain(5, 5, world.Coord{X: 0, Y: 0})
	for y := 0; y < 4; y++ {
		require.True(t, tr.SetWall(world.Coord{X: 2, Y: y}))
	}
	goal := world.Coord{X: 4, Y: 0}

	res, err := astar.Find(tr, tr.Nest(), goal, astar.Four)
	require.NoError(t, err)
	assert.Equal(t, 12, res.Steps())
	for _, c := range res.Path {
		assert.NotEqual(t, world.CellWall, tr.Kind(c))
	}
	assert.Positive(t, res.Explored)
}

func TestNoPath(t *testing.T) {
	tr := world.NewTerrain(5, 5, world.Coord{X: 0, Y: 0})
	for y := 0; y < 5; y++ {
		require.True(t, tr.SetWall(world.Coord{X: 2, Y: y}))
	}
	_, err := astar.Find(tr, tr.Nest(), world.Coord{X: 4, Y: 4}, astar.Four)
	assert.ErrorIs(t, err, astar.ErrNoPath)

	_, err = astar.Find(tr, tr.Nest(), world.Coord{X: 2, Y: 2}, astar.Four)
	assert.ErrorIs(t, err, astar.ErrNoPath)

	_, err = astar.Find(tr, tr.Nest(), world.Coord{X: 9, Y: 9}, astar.Four)
	assert.ErrorIs(t, err, astar.ErrNoPath)
}

func TestStartIsGoal(t *testing.T) {
	tr := world.NewTerrain(3, 3, world.Coord{X: 1, Y: 1})
	res, err := astar.Find(tr, tr.Nest(), tr.Nest(), astar.Four)
	require.NoError(t, err)
	assert.Equal(t, []world.Coord{tr.Nest()}, res.Path)
	assert.Zero(t, res.Steps())
	assert.Zero(t, res.Cost)
}

func TestCrossesFoodCells(t *testing.T) {
	tr := world.NewTerrain(4, 1, world.Coord{X: 0, Y: 0})
	require.True(t, tr.AddFood(world.Coord{X: 1, Y: 0}, 3))
	res, err := astar.Find(tr, tr.Nest(), world.Coord{X: 3, Y: 0}, astar.Four)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Steps())
}

func TestDeterministic(t *testing.T) {
	tr, _ := world.Generate(world.DefaultGenConfig(), rand.New(rand.NewSource(3)))
	require.NotEmpty(t, tr.ActiveFood())
	goal := tr.ActiveFood()[0]
	a, errA := astar.Find(tr, tr.Nest(), goal, astar.Four)
	b, errB := astar.Find(tr, tr.Nest(), goal, astar.Four)
	assert.Equal(t, errA, errB)
	assert.Equal(t, a, b)
}
