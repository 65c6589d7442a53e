package agents_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/antcolony/internal/agents"
	"github.com/talgya/antcolony/internal/pheromone"
	"github.com/talgya/antcolony/internal/world"
)

const tau0 = 0.1

func testParams() agents.Params {
	return agents.Params{Alpha: 1, Beta: 3, Q: 100, Epsilon: 0, SearchTimeout: 100}
}

func newEnv(tr *world.Terrain, seed int64) agents.Env {
	return agents.Env{
		Terrain: tr,
		Field:   pheromone.New(tr.Width(), tr.Height(), tau0),
		Rand:    rand.New(rand.NewSource(seed)),
	}
}

// corridor builds a width×1 grid with the nest at x=0 and optional food at
// the far end.
func corridor(t *testing.T, width, capacity int) *world.Terrain {
	t.Helper()
	tr := world.NewTerrain(width, 1, world.Coord{X: 0, Y: 0})
	if capacity > 0 {
		require.True(t, tr.AddFood(world.Coord{X: width - 1, Y: 0}, capacity))
	}
	return tr
}

func TestNewAgentStartsAtNest(t *testing.T) {
	nest := world.Coord{X: 2, Y: 3}
	a := agents.New(7, nest, testParams())

	assert.Equal(t, agents.AgentID(7), a.ID)
	assert.Equal(t, nest, a.Position())
	assert.Equal(t, agents.StateSearching, a.State())
	assert.Equal(t, []world.Coord{nest}, a.Path())
	assert.Zero(t, a.StepsSinceNest())
	assert.False(t, a.Carrying())
}

func TestSuccessfulTourDepositsAlongPath(t *testing.T) {
	tr := corridor(t, 3, 5)
	env := newEnv(tr, 1)
	a := agents.New(1, tr.Nest(), testParams())
	food := world.Coord{X: 2, Y: 0}

	assert.Equal(t, agents.OutcomeMoved, a.Step(env))
	assert.Equal(t, agents.OutcomePickup, a.Step(env))
	assert.Equal(t, food, a.Position())
	assert.Equal(t, agents.StateReturning, a.State())
	assert.True(t, a.Carrying())
	assert.Equal(t, 4, tr.RemainingFood())

	assert.Equal(t, agents.OutcomeMoved, a.Step(env))
	assert.Equal(t, world.Coord{X: 1, Y: 0}, a.Position())
	assert.Equal(t, agents.OutcomeDelivered, a.Step(env))

	assert.Equal(t, tr.Nest(), a.Position())
	assert.Equal(t, agents.StateSearching, a.State())
	assert.Equal(t, []world.Coord{tr.Nest()}, a.Path())

	tours := tr.Tours(food)
	require.Len(t, tours, 1)
	assert.Equal(t, tr.Nest(), tours[0][0])
	assert.Equal(t, food, tours[0][len(tours[0])-1])

	want := tau0 + 100.0/3
	for x := 0; x < 3; x++ {
		assert.InDelta(t, want, env.Field.At(world.Coord{X: x, Y: 0}), 1e-9)
	}
}

func TestExhaustionResetsTrailAndSkipsDeposit(t *testing.T) {
	tr := world.NewTerrain(2, 1, world.Coord{X: 0, Y: 0})
	food := world.Coord{X: 1, Y: 0}
	require.True(t, tr.AddFood(food, 1))
	env := newEnv(tr, 2)
	env.Field.Deposit([]world.Coord{tr.Nest(), food}, 5)

	a := agents.New(1, tr.Nest(), testParams())
	assert.Equal(t, agents.OutcomeExhausted, a.Step(env))

	assert.Zero(t, tr.RemainingFood())
	assert.Equal(t, world.CellDepletedFood, tr.Kind(food))
	assert.Equal(t, tau0, env.Field.At(tr.Nest()))
	assert.Equal(t, tau0, env.Field.At(food))
	assert.Equal(t, agents.StateReturning, a.State())

	assert.Equal(t, agents.OutcomeDelivered, a.Step(env))
	assert.Len(t, tr.Tours(food), 1)
	assert.Equal(t, tau0, env.Field.At(tr.Nest()))
	assert.Equal(t, tau0, env.Field.At(food))
}

func TestDepletedFoodIsAFailedTour(t *testing.T) {
	tr := corridor(t, 3, 1)
	food := world.Coord{X: 2, Y: 0}
	require.True(t, tr.ConsumeFood(food))
	env := newEnv(tr, 3)
	env.Field.Deposit([]world.Coord{{X: 1, Y: 0}}, 9)

	a := agents.New(1, tr.Nest(), testParams())
	a.Step(env)
	assert.Equal(t, agents.OutcomeDepleted, a.Step(env))
	assert.Equal(t, agents.StateReturning, a.State())
	assert.False(t, a.Carrying())
	assert.Equal(t, tau0, env.Field.At(world.Coord{X: 1, Y: 0}))

	a.Step(env)
	assert.Equal(t, agents.OutcomeHome, a.Step(env))
	assert.Empty(t, tr.Tours(food))
	assert.Equal(t, tau0, env.Field.At(tr.Nest()))
}

func TestTimeoutRetracesWithoutReinforcement(t *testing.T) {
	tr := world.NewTerrain(9, 9, world.Coord{X: 4, Y: 4})
	env := newEnv(tr, 4)
	p := testParams()
	p.SearchTimeout = 3
	p.Epsilon = 1
	a := agents.New(1, tr.Nest(), p)

	for i := 0; i < 3; i++ {
		require.Equal(t, agents.OutcomeMoved, a.Step(env))
	}
	forward := a.Path()
	require.Len(t, forward, 4)

	assert.Equal(t, agents.OutcomeTimeout, a.Step(env))
	assert.Equal(t, agents.StateReturning, a.State())
	assert.Equal(t, forward[3], a.Position())
	assert.Equal(t, 3, a.ReturnRemaining())

	before := env.Field.Values()
	for i := 2; i > 0; i-- {
		a.Step(env)
		assert.Equal(t, forward[i], a.Position())
	}
	assert.Equal(t, agents.OutcomeHome, a.Step(env))
	assert.Equal(t, tr.Nest(), a.Position())
	assert.Equal(t, before, env.Field.Values())
	assert.Zero(t, tr.TourCount())
}

func TestForwardPathBoundedByTimeout(t *testing.T) {
	tr := world.NewTerrain(30, 30, world.Coord{X: 15, Y: 15})
	env := newEnv(tr, 5)
	p := testParams()
	p.SearchTimeout = 10
	p.Epsilon = 1
	a := agents.New(1, tr.Nest(), p)

	for i := 0; i < 2000; i++ {
		a.Step(env)
		if a.State() == agents.StateSearching {
			require.LessOrEqual(t, len(a.Path()), p.SearchTimeout+1)
		}
	}
}

func TestDeadEndRespawns(t *testing.T) {
	nest := world.Coord{X: 1, Y: 1}
	tr := world.NewTerrain(3, 3, nest)
	for _, n := range nest.Neighbors() {
		require.True(t, tr.SetWall(n))
	}
	env := newEnv(tr, 6)
	a := agents.New(1, nest, testParams())

	assert.Equal(t, agents.OutcomeDeadEnd, a.Step(env))
	assert.Equal(t, nest, a.Position())
	assert.Equal(t, agents.StateSearching, a.State())
	assert.Zero(t, a.StepsSinceNest())
}

func TestNoImmediateBacktrackUnlessForced(t *testing.T) {
	tr := corridor(t, 3, 0)
	env := newEnv(tr, 7)
	p := testParams()
	p.Epsilon = 1
	a := agents.New(1, tr.Nest(), p)

	a.Step(env)
	assert.Equal(t, world.Coord{X: 1, Y: 0}, a.Position())
	a.Step(env)
	assert.Equal(t, world.Coord{X: 2, Y: 0}, a.Position(), "previous cell filtered out")
	a.Step(env)
	assert.Equal(t, world.Coord{X: 1, Y: 0}, a.Position(), "dead end allows the previous cell back")
}

func TestRouletteFollowsStrongTrail(t *testing.T) {
	nest := world.Coord{X: 1, Y: 1}
	tr := world.NewTerrain(3, 3, nest)
	require.True(t, tr.AddFood(world.Coord{X: 0, Y: 0}, 1000))
	env := newEnv(tr, 8)
	strong := world.Coord{X: 2, Y: 1}
	env.Field.Set(strong, 1000)

	p := testParams()
	p.Beta = 0
	hits := 0
	const trials = 1000
	for i := 0; i < trials; i++ {
		a := agents.New(1, nest, p)
		a.Step(env)
		if a.Position() == strong {
			hits++
		}
	}
	assert.Greater(t, hits, trials*95/100)
}

func TestZeroScoresChooseUniformly(t *testing.T) {
	// No food anywhere: every heuristic is 0, so every score is 0.
	nest := world.Coord{X: 2, Y: 2}
	tr := world.NewTerrain(5, 5, nest)
	env := newEnv(tr, 9)

	candidates := tr.Neighbors(nest)
	require.Len(t, candidates, 4)
	counts := make(map[world.Coord]int)
	const trials = 8000
	for i := 0; i < trials; i++ {
		a := agents.New(1, nest, testParams())
		a.Step(env)
		counts[a.Position()]++
	}

	expected := float64(trials) / float64(len(candidates))
	chi2 := 0.0
	for _, c := range candidates {
		d := float64(counts[c]) - expected
		chi2 += d * d / expected
	}
	// 3 degrees of freedom, p = 0.001.
	assert.Less(t, chi2, 16.27, "counts %v", counts)
}

func TestSpawnPopulation(t *testing.T) {
	nest := world.Coord{X: 3, Y: 3}
	s := agents.NewSpawner(nest, testParams())
	pop := s.SpawnPopulation(5)
	require.Len(t, pop, 5)
	for i, a := range pop {
		assert.Equal(t, agents.AgentID(i+1), a.ID)
		assert.Equal(t, nest, a.Position())
	}
	assert.Equal(t, map[agents.State]int{agents.StateSearching: 5}, agents.StateCounts(pop))
}
