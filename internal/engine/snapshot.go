package engine

import (
	"github.com/talgya/antcolony/internal/world"
)

// Status is the lightweight per-tick summary pushed to observers.
type Status struct {
	Tick            uint64      `json:"tick"`
	SimTime         string      `json:"sim_time"`
	Seed            int64       `json:"seed"`
	Remaining       int         `json:"remaining"`
	Collected       int         `json:"collected"`
	TotalFood       int         `json:"total_food"`
	Throughput      float64     `json:"throughput"`
	FirstPickupTick *uint64     `json:"first_pickup_tick,omitempty"`
	AllFoodTick     *uint64     `json:"all_food_tick,omitempty"`
	Tours           int         `json:"tours"`
	Stats           Stats       `json:"stats"`
	Agents          []AgentView `json:"agents,omitempty"`
}

// FoodView is the remaining capacity of one active source.
type FoodView struct {
	Position  world.Coord `json:"position"`
	Remaining int         `json:"remaining"`
}

// Snapshot is a consistent copy of the full observable world at one tick.
type Snapshot struct {
	Status
	Width        int                           `json:"width"`
	Height       int                           `json:"height"`
	Nest         world.Coord                   `json:"nest"`
	Cells        []world.CellKind              `json:"-"` // row-major, served as ints by the API
	Pheromone    []float64                     `json:"pheromone"`
	PheromoneMax float64                       `json:"pheromone_max"`
	Food         []FoodView                    `json:"food"`
	BestPaths    map[world.Coord][]world.Coord `json:"-"`
}

// Status returns the run summary, optionally with agent positions.
func (s *Simulation) Status(withAgents bool) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status(withAgents)
}

func (s *Simulation) status(withAgents bool) Status {
	st := Status{
		Tick:            s.tick,
		SimTime:         SimTime(s.tick, s.cfg.TicksPerSecond),
		Seed:            s.seed,
		Remaining:       s.terrain.RemainingFood(),
		Collected:       s.collected,
		TotalFood:       s.terrain.TotalFood(),
		Throughput:      s.throughput(),
		FirstPickupTick: copyTick(s.firstTick),
		AllFoodTick:     copyTick(s.allTick),
		Tours:           s.terrain.TourCount(),
		Stats:           s.stats,
	}
	if withAgents {
		st.Agents = s.agentViews()
	}
	return st
}

func copyTick(t *uint64) *uint64 {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Snapshot copies the full world state.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Status:       s.status(true),
		Width:        s.terrain.Width(),
		Height:       s.terrain.Height(),
		Nest:         s.terrain.Nest(),
		Cells:        s.terrain.Kinds(),
		Pheromone:    s.field.Values(),
		PheromoneMax: s.field.Max(),
	}
	for _, f := range s.terrain.ActiveFood() {
		left, _ := s.terrain.FoodCapacity(f)
		snap.Food = append(snap.Food, FoodView{Position: f, Remaining: left})
	}
	if s.best.computed {
		snap.BestPaths = make(map[world.Coord][]world.Coord, len(s.best.paths))
		for food, p := range s.best.paths {
			snap.BestPaths[food] = append([]world.Coord(nil), p...)
		}
	}
	return snap
}

// CellView is everything observable about one cell at one tick.
type CellView struct {
	Tick          uint64      `json:"tick"`
	Position      world.Coord `json:"position"`
	Kind          string      `json:"kind"`
	Pheromone     float64     `json:"pheromone"`
	Agents        int         `json:"agents"`
	FoodRemaining *int        `json:"food_remaining,omitempty"`
}

// Cell describes c under a single read lock. ok is false when c is off the
// grid.
func (s *Simulation) Cell(c world.Coord) (view CellView, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.terrain.InBounds(c) {
		return CellView{}, false
	}
	view = CellView{
		Tick:      s.tick,
		Position:  c,
		Kind:      s.terrain.Kind(c).String(),
		Pheromone: s.field.At(c),
	}
	for _, a := range s.agents {
		if a.Position() == c {
			view.Agents++
		}
	}
	if left, active := s.terrain.FoodCapacity(c); active {
		view.FoodRemaining = &left
	}
	return view, true
}
