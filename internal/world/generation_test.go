package world_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/antcolony/internal/world"
)

func TestGenerateDefault(t *testing.T) {
	cfg := world.DefaultGenConfig()
	tr, p := world.Generate(cfg, rand.New(rand.NewSource(1)))

	assert.Equal(t, world.CellNest, tr.Kind(cfg.Nest))
	assert.Equal(t, cfg.FoodSources, p.FoodPlaced)
	assert.Equal(t, cfg.FoodSources*cfg.FoodCapacity, tr.TotalFood())
	assert.Equal(t, tr.TotalFood(), tr.RemainingFood())
	assert.LessOrEqual(t, p.WallsPlaced, cfg.Walls)

	counts := tr.KindCounts()
	assert.Equal(t, 1, counts[world.CellNest])
	assert.Equal(t, cfg.FoodSources, counts[world.CellFood])
	assert.GreaterOrEqual(t, counts[world.CellWall], p.WallsPlaced*cfg.WallMinLen)
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := world.DefaultGenConfig()
	a, _ := world.Generate(cfg, rand.New(rand.NewSource(99)))
	b, _ := world.Generate(cfg, rand.New(rand.NewSource(99)))
	assert.Equal(t, a.Kinds(), b.Kinds())
	assert.Equal(t, a.ActiveFood(), b.ActiveFood())
}

func TestGeneratePresetFood(t *testing.T) {
	cfg := world.DefaultGenConfig()
	cfg.Walls = 0
	cfg.FoodPositions = []world.Coord{
		{X: 1, Y: 1},
		{X: 1, Y: 1},  // duplicate
		cfg.Nest,      // on the nest
		{X: 99, Y: 0}, // off-grid
		{X: 40, Y: 10},
	}
	tr, p := world.Generate(cfg, rand.New(rand.NewSource(3)))

	assert.Equal(t, 5, p.FoodRequested)
	assert.Equal(t, 2, p.FoodPlaced)
	assert.Equal(t, []world.Coord{{X: 1, Y: 1}, {X: 40, Y: 10}}, tr.ActiveFood())
}

func TestGenerateCrowdedGridIsBestEffort(t *testing.T) {
	cfg := world.GenConfig{
		Width:        4,
		Height:       4,
		Nest:         world.Coord{X: 0, Y: 0},
		FoodSources:  1,
		FoodCapacity: 3,
		Walls:        50,
		WallMinLen:   3,
		WallMaxLen:   6, // longer than the grid most of the time
	}
	tr, p := world.Generate(cfg, rand.New(rand.NewSource(5)))

	assert.Less(t, p.WallsPlaced, p.WallsRequested)
	assert.Equal(t, world.CellNest, tr.Kind(cfg.Nest))
	require.Len(t, tr.ActiveFood(), 1)
	assert.Equal(t, world.CellFood, tr.Kind(tr.ActiveFood()[0]))
}

func TestGenerateNoiseLayout(t *testing.T) {
	cfg := world.DefaultGenConfig()
	cfg.Layout = world.LayoutNoise
	cfg.NoiseThreshold = 0.6
	cfg.NoiseSeed = 7
	tr, p := world.Generate(cfg, rand.New(rand.NewSource(7)))

	assert.Equal(t, world.CellNest, tr.Kind(cfg.Nest))
	assert.Equal(t, p.WallsPlaced, tr.KindCounts()[world.CellWall])
	for _, f := range tr.ActiveFood() {
		assert.Equal(t, world.CellFood, tr.Kind(f))
	}

	// A threshold above the normalized range places nothing.
	cfg.NoiseThreshold = 1.1
	tr, p = world.Generate(cfg, rand.New(rand.NewSource(7)))
	assert.Zero(t, p.WallsPlaced)
	assert.Zero(t, tr.KindCounts()[world.CellWall])
}

func TestParseWallLayout(t *testing.T) {
	l, ok := world.ParseWallLayout("noise")
	assert.True(t, ok)
	assert.Equal(t, world.LayoutNoise, l)

	_, ok = world.ParseWallLayout("maze")
	assert.False(t, ok)
}
