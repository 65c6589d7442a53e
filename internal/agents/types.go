// Package agents provides the forager data model and its search/return
// state machine.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/antcolony/internal/pheromone"
	"github.com/talgya/antcolony/internal/world"
)

// AgentID is a unique identifier for a forager within one simulation.
type AgentID uint32

// State is the forager's current mode.
type State uint8

const (
	StateSearching State = iota // Walking out from the nest looking for food
	StateReturning              // Retracing the forward path back to the nest
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateReturning:
		return "returning"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "searching":
		*s = StateSearching
	case "returning":
		*s = StateReturning
	default:
		return fmt.Errorf("unknown agent state %q", b)
	}
	return nil
}

// Params are the colony-wide decision constants. They never change during
// a run.
type Params struct {
	Alpha         float64 // Pheromone exponent
	Beta          float64 // Heuristic exponent
	Q             float64 // Reinforcement laid per successful tour, spread over its length
	Epsilon       float64 // Probability of a uniformly random move
	SearchTimeout int     // Steps away from the nest before giving up
}

// Env is the shared world an agent acts on during one step. The agent
// holds no reference to it between steps.
type Env struct {
	Terrain *world.Terrain
	Field   *pheromone.Field
	Rand    *rand.Rand
}

// Agent is a single forager.
//
// The return-trip data exists only while the agent is returning: ret is nil
// in StateSearching, so a reset can never leave stale stack or deposit data
// behind.
type Agent struct {
	ID AgentID `json:"id"`

	params Params
	nest   world.Coord

	pos   world.Coord
	path  []world.Coord // Forward path, starts at the nest
	steps int           // Steps since leaving the nest
	ret   *returnTrip

	scores []float64 // Scratch space for candidate scores
}

// returnTrip is the state carried home.
type returnTrip struct {
	stack       []world.Coord // Coordinates to retrace, head first
	deposit     []world.Coord // Forward path to reinforce; empty on a failed tour
	skipDeposit bool          // Record the tour but lay no pheromone
}

// New creates an agent at the nest in the searching state.
func New(id AgentID, nest world.Coord, p Params) *Agent {
	a := &Agent{ID: id, params: p, nest: nest}
	a.Reset()
	return a
}

// Reset returns the agent to the nest with a fresh tour.
func (a *Agent) Reset() {
	a.pos = a.nest
	a.path = append(a.path[:0], a.nest)
	a.steps = 0
	a.ret = nil
}

// Position returns the agent's current cell.
func (a *Agent) Position() world.Coord { return a.pos }

// Nest returns the agent's home cell.
func (a *Agent) Nest() world.Coord { return a.nest }

// Params returns the agent's decision constants.
func (a *Agent) Params() Params { return a.params }

// State returns the agent's current mode.
func (a *Agent) State() State {
	if a.ret != nil {
		return StateReturning
	}
	return StateSearching
}

// Path returns a copy of the forward path walked so far.
func (a *Agent) Path() []world.Coord {
	return append([]world.Coord(nil), a.path...)
}

// StepsSinceNest returns the number of search steps taken this tour.
func (a *Agent) StepsSinceNest() int { return a.steps }

// Carrying reports whether the agent is bringing food home.
func (a *Agent) Carrying() bool {
	return a.ret != nil && len(a.ret.deposit) > 0
}

// ReturnRemaining returns how many retrace steps are left, 0 while searching.
func (a *Agent) ReturnRemaining() int {
	if a.ret == nil {
		return 0
	}
	return len(a.ret.stack)
}
