// Forager behavior: one step of the search/return state machine.
package agents

import (
	"math"

	"github.com/talgya/antcolony/internal/world"
)

// heuristicEpsilon keeps the inverse-distance heuristic finite on a food cell.
const heuristicEpsilon = 1e-6

// Outcome describes what an agent's step did.
type Outcome uint8

const (
	OutcomeMoved     Outcome = iota // Ordinary search or return move
	OutcomePickup                   // Took a unit of food, heading home
	OutcomeExhausted                // Took the last unit of a source, trail erased
	OutcomeDepleted                 // Walked onto an exhausted source, trail erased
	OutcomeTimeout                  // Gave up searching, heading home
	OutcomeDeadEnd                  // No move possible, respawned at the nest
	OutcomeDelivered                // Reached the nest with a completed tour
	OutcomeHome                     // Reached the nest after a failed tour
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeMoved:
		return "moved"
	case OutcomePickup:
		return "pickup"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeDepleted:
		return "depleted"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeDeadEnd:
		return "dead_end"
	case OutcomeDelivered:
		return "delivered"
	case OutcomeHome:
		return "home"
	default:
		return "unknown"
	}
}

// Step advances the agent by one move.
func (a *Agent) Step(env Env) Outcome {
	if a.ret != nil {
		return a.returnStep(env)
	}
	return a.searchStep(env)
}

func (a *Agent) searchStep(env Env) Outcome {
	a.steps++
	if a.steps > a.params.SearchTimeout {
		a.ret = &returnTrip{stack: retrace(a.path), skipDeposit: true}
		return OutcomeTimeout
	}

	candidates := env.Terrain.Neighbors(a.pos)
	if len(a.path) > 1 {
		candidates = withoutUnlessEmpty(candidates, a.path[len(a.path)-2])
	}
	if len(candidates) == 0 {
		a.Reset()
		return OutcomeDeadEnd
	}

	next := a.choose(env, candidates)
	a.pos = next
	a.path = append(a.path, next)

	switch env.Terrain.Kind(next) {
	case world.CellFood:
		exhausted := env.Terrain.ConsumeFood(next)
		trip := &returnTrip{
			stack:   retrace(a.path),
			deposit: append([]world.Coord(nil), a.path...),
		}
		a.ret = trip
		if exhausted {
			env.Field.Reset(a.path)
			trip.skipDeposit = true
			return OutcomeExhausted
		}
		return OutcomePickup

	case world.CellDepletedFood:
		env.Field.Reset(a.path)
		a.ret = &returnTrip{stack: retrace(a.path), skipDeposit: true}
		return OutcomeDepleted
	}
	return OutcomeMoved
}

func (a *Agent) returnStep(env Env) Outcome {
	trip := a.ret
	next := a.nest
	if len(trip.stack) > 0 {
		next = trip.stack[0]
		trip.stack = trip.stack[1:]
	}
	a.pos = next

	if env.Terrain.Kind(a.pos) != world.CellNest {
		return OutcomeMoved
	}

	outcome := OutcomeHome
	if n := len(trip.deposit); n > 0 {
		env.Terrain.RecordPath(trip.deposit[n-1], trip.deposit)
		if !trip.skipDeposit {
			env.Field.Deposit(trip.deposit, a.params.Q/float64(max(1, n)))
		}
		outcome = OutcomeDelivered
	}
	a.Reset()
	return outcome
}

// choose picks the next cell among candidates: uniformly at random with
// probability Epsilon or when no candidate carries any information,
// otherwise by roulette wheel over pheromone^Alpha * heuristic^Beta.
func (a *Agent) choose(env Env, candidates []world.Coord) world.Coord {
	if cap(a.scores) < len(candidates) {
		a.scores = make([]float64, len(candidates))
	}
	scores := a.scores[:len(candidates)]

	total := 0.0
	for i, n := range candidates {
		s := math.Pow(env.Field.At(n), a.params.Alpha) * math.Pow(heuristic(env.Terrain, n), a.params.Beta)
		scores[i] = s
		total += s
	}

	if total == 0 || env.Rand.Float64() < a.params.Epsilon {
		return candidates[env.Rand.Intn(len(candidates))]
	}
	if math.IsInf(total, 0) || math.IsNaN(total) {
		return strongest(candidates, scores)
	}

	r := env.Rand.Float64() * total
	cum := 0.0
	for i, s := range scores {
		cum += s
		if cum >= r {
			return candidates[i]
		}
	}

	// Rounding can leave the draw just above the final cumulative sum.
	for i := len(scores) - 1; i >= 0; i-- {
		if scores[i] > 0 {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// heuristic is the inverse distance to the nearest active food source, or 0
// when none remain.
func heuristic(t *world.Terrain, c world.Coord) float64 {
	d, ok := t.NearestFoodDistance(c)
	if !ok {
		return 0
	}
	return 1 / (d + heuristicEpsilon)
}

// strongest returns the first candidate with the largest score. NaN scores
// never win.
func strongest(candidates []world.Coord, scores []float64) world.Coord {
	best := 0
	for i, s := range scores {
		if s > scores[best] || math.IsNaN(scores[best]) {
			best = i
		}
	}
	return candidates[best]
}

// retrace returns the forward path reversed, without its last cell.
func retrace(path []world.Coord) []world.Coord {
	if len(path) < 2 {
		return nil
	}
	out := make([]world.Coord, 0, len(path)-1)
	for i := len(path) - 2; i >= 0; i-- {
		out = append(out, path[i])
	}
	return out
}

// withoutUnlessEmpty drops prev from candidates unless nothing else is left.
func withoutUnlessEmpty(candidates []world.Coord, prev world.Coord) []world.Coord {
	filtered := candidates[:0:0]
	for _, c := range candidates {
		if c != prev {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return candidates
	}
	return filtered
}
