// Population spawning: the colony is created once, at the nest, and keeps
// the same size for the whole run.
package agents

import (
	"github.com/talgya/antcolony/internal/world"
)

// Spawner issues agent IDs for a colony.
type Spawner struct {
	nest   world.Coord
	params Params
	nextID AgentID
}

// NewSpawner creates a spawner that places agents at nest.
func NewSpawner(nest world.Coord, p Params) *Spawner {
	return &Spawner{nest: nest, params: p, nextID: 1}
}

// SpawnPopulation creates count agents, all searching from the nest.
func (s *Spawner) SpawnPopulation(count int) []*Agent {
	agents := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		agents = append(agents, New(s.nextID, s.nest, s.params))
		s.nextID++
	}
	return agents
}

// StateCounts returns how many agents are in each state.
func StateCounts(agents []*Agent) map[State]int {
	counts := make(map[State]int, 2)
	for _, a := range agents {
		counts[a.State()]++
	}
	return counts
}
