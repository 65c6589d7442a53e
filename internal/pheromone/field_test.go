package pheromone_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/antcolony/internal/pheromone"
	"github.com/talgya/antcolony/internal/world"
)

func TestNewInitializesTau0(t *testing.T) {
	f := pheromone.New(3, 2, 0.1)
	for _, v := range f.Values() {
		assert.Equal(t, 0.1, v)
	}
	assert.Equal(t, 0.1, f.Tau0())
	assert.Zero(t, f.At(world.Coord{X: 3, Y: 0}))
}

func TestEvaporate(t *testing.T) {
	f := pheromone.New(2, 2, 1.0)
	f.Evaporate(0.25)
	assert.InDelta(t, 0.75, f.At(world.Coord{X: 1, Y: 1}), 1e-12)

	f.Evaporate(0)
	assert.InDelta(t, 0.75, f.At(world.Coord{X: 1, Y: 1}), 1e-12)

	f.Evaporate(1)
	assert.Zero(t, f.Sum())

	g := pheromone.New(2, 2, 1.0)
	g.Evaporate(3) // clamped to 1
	assert.Zero(t, g.Sum())
}

func TestDepositCountsRepeats(t *testing.T) {
	f := pheromone.New(3, 1, 0)
	a := world.Coord{X: 0, Y: 0}
	b := world.Coord{X: 1, Y: 0}
	f.Deposit([]world.Coord{a, b, a}, 2)

	assert.Equal(t, 4.0, f.At(a))
	assert.Equal(t, 2.0, f.At(b))
	assert.Equal(t, 6.0, f.Sum())
	assert.Equal(t, 4.0, f.Max())
}

func TestResetAndSet(t *testing.T) {
	f := pheromone.New(3, 1, 0.5)
	path := []world.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}}
	f.Deposit(path, 10)
	f.Reset(path)
	assert.Equal(t, 0.5, f.At(path[0]))
	assert.Equal(t, 0.5, f.At(path[1]))

	f.Set(path[0], -3)
	assert.Zero(t, f.At(path[0]))
}

func TestValuesNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	f := pheromone.New(8, 8, 0.1)
	for i := 0; i < 500; i++ {
		c := world.Coord{X: rng.Intn(8), Y: rng.Intn(8)}
		f.Deposit([]world.Coord{c}, rng.Float64()*5)
		f.Evaporate(rng.Float64())
		for _, v := range f.Values() {
			if v < 0 {
				t.Fatalf("negative pheromone %v after %d rounds", v, i)
			}
		}
	}
}
