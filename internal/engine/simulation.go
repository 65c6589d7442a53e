package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/antcolony/internal/agents"
	"github.com/talgya/antcolony/internal/entropy"
	"github.com/talgya/antcolony/internal/pheromone"
	"github.com/talgya/antcolony/internal/world"
)

// Simulation owns the complete world state. Tick and the read accessors
// are safe to call from different goroutines; agents themselves are
// stepped sequentially in population order.
type Simulation struct {
	mu sync.RWMutex

	cfg       Config
	seed      int64
	terrain   *world.Terrain
	field     *pheromone.Field
	agents    []*agents.Agent
	rng       *rand.Rand
	placement world.Placement

	tick      uint64
	firstTick *uint64 // Tick of the first pickup, latched
	allTick   *uint64 // Tick all food was gone, latched
	collected int
	best      bestPaths
	stats     Stats
}

// bestPaths is computed exactly once, the first tick on which all food is
// gone and at least one tour has been recorded.
type bestPaths struct {
	computed bool
	paths    map[world.Coord][]world.Coord
}

// Stats counts agent step outcomes over the whole run.
type Stats struct {
	Pickups     int `json:"pickups"`
	Exhaustions int `json:"exhaustions"`
	Deliveries  int `json:"deliveries"`
	Timeouts    int `json:"timeouts"`
	DeadEnds    int `json:"dead_ends"`
	Depleted    int `json:"depleted"`
}

func (s *Stats) record(o agents.Outcome) {
	switch o {
	case agents.OutcomePickup:
		s.Pickups++
	case agents.OutcomeExhausted:
		s.Pickups++
		s.Exhaustions++
	case agents.OutcomeDelivered:
		s.Deliveries++
	case agents.OutcomeTimeout:
		s.Timeouts++
	case agents.OutcomeDeadEnd:
		s.DeadEnds++
	case agents.OutcomeDepleted:
		s.Depleted++
	}
}

// New validates cfg, generates the terrain and spawns the colony.
func New(cfg Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := entropy.ResolveSeed(cfg.Seed)
	terrain, placement := world.Generate(cfg.GenConfig(seed), entropy.NewRand(seed, entropy.StreamTerrain))

	sim := newSimulation(cfg, seed, terrain)
	sim.placement = placement

	slog.Debug("simulation created",
		"seed", seed,
		"grid", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"agents", len(sim.agents),
		"food_sources", placement.FoodPlaced,
		"food_total", terrain.TotalFood(),
		"walls", placement.WallsPlaced,
		"layout", cfg.WallLayout,
	)
	return sim, nil
}

// NewWithTerrain builds a simulation on a prepared terrain. The nest is
// taken from the terrain; grid dimensions in cfg are overridden by it.
func NewWithTerrain(cfg Config, terrain *world.Terrain) (*Simulation, error) {
	nest := terrain.Nest()
	cfg.Width = terrain.Width()
	cfg.Height = terrain.Height()
	cfg.Nest = &nest
	cfg.FoodPositions = nil
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := entropy.ResolveSeed(cfg.Seed)
	sim := newSimulation(cfg, seed, terrain)
	sim.placement = world.Placement{
		FoodRequested: len(terrain.ActiveFood()),
		FoodPlaced:    len(terrain.ActiveFood()),
	}
	return sim, nil
}

func newSimulation(cfg Config, seed int64, terrain *world.Terrain) *Simulation {
	spawner := agents.NewSpawner(terrain.Nest(), cfg.AgentParams())
	return &Simulation{
		cfg:     cfg,
		seed:    seed,
		terrain: terrain,
		field:   pheromone.New(terrain.Width(), terrain.Height(), cfg.Tau0),
		agents:  spawner.SpawnPopulation(cfg.Agents),
		rng:     entropy.NewRand(seed, entropy.StreamColony),
	}
}

// Tick advances the world by one step: every agent moves once in
// population order, the field evaporates once, then run metrics are
// updated from the food taken this tick.
func (s *Simulation) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	before := s.terrain.RemainingFood()

	env := agents.Env{Terrain: s.terrain, Field: s.field, Rand: s.rng}
	for _, a := range s.agents {
		s.stats.record(a.Step(env))
	}

	s.field.Evaporate(s.cfg.Rho)

	after := s.terrain.RemainingFood()
	if delta := before - after; delta > 0 {
		s.collected += delta
		if s.firstTick == nil {
			t := s.tick
			s.firstTick = &t
			slog.Debug("first food pickup", "tick", t)
		}
	}
	if after == 0 && s.allTick == nil {
		t := s.tick
		s.allTick = &t
		slog.Debug("all food collected", "tick", t, "collected", s.collected)
	}
	if !s.best.computed && after == 0 && s.terrain.TourCount() > 0 {
		s.best = bestPaths{computed: true, paths: shortestTours(s.terrain.ToursByFood())}
	}
}

// shortestTours picks the shortest recorded tour per food source. The
// earliest tour wins ties.
func shortestTours(tours map[world.Coord][][]world.Coord) map[world.Coord][]world.Coord {
	best := make(map[world.Coord][]world.Coord, len(tours))
	for food, paths := range tours {
		var shortest []world.Coord
		for _, p := range paths {
			if shortest == nil || len(p) < len(shortest) {
				shortest = p
			}
		}
		if shortest != nil {
			best[food] = append([]world.Coord(nil), shortest...)
		}
	}
	return best
}

// Config returns the run configuration.
func (s *Simulation) Config() Config { return s.cfg }

// Seed returns the seed the run was built from.
func (s *Simulation) Seed() int64 { return s.seed }

// Placement reports how much of the requested layout was placed.
func (s *Simulation) Placement() world.Placement { return s.placement }

// Terrain returns the live terrain. Only safe while no Tick is running.
func (s *Simulation) Terrain() *world.Terrain { return s.terrain }

// CurrentTick returns the number of ticks processed.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// CellKind returns the cell kind at c.
func (s *Simulation) CellKind(c world.Coord) world.CellKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terrain.Kind(c)
}

// Pheromone returns the trail value at c.
func (s *Simulation) Pheromone(c world.Coord) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.field.At(c)
}

// AgentView is a read-only copy of one agent's observable state.
type AgentView struct {
	ID       agents.AgentID `json:"id"`
	Position world.Coord    `json:"position"`
	State    agents.State   `json:"state"`
	Carrying bool           `json:"carrying"`
}

// Agents returns the position and state of every agent, in population order.
func (s *Simulation) Agents() []AgentView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentViews()
}

func (s *Simulation) agentViews() []AgentView {
	out := make([]AgentView, len(s.agents))
	for i, a := range s.agents {
		out[i] = AgentView{ID: a.ID, Position: a.Position(), State: a.State(), Carrying: a.Carrying()}
	}
	return out
}

// RemainingFood returns the food still on the map.
func (s *Simulation) RemainingFood() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terrain.RemainingFood()
}

// Collected returns the food taken so far.
func (s *Simulation) Collected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collected
}

// TotalFood returns the food placed at generation.
func (s *Simulation) TotalFood() int {
	return s.terrain.TotalFood()
}

// FirstPickupTick returns the tick of the first pickup, if any.
func (s *Simulation) FirstPickupTick() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latched(s.firstTick)
}

// AllFoodTick returns the tick on which the last unit was taken, if any.
func (s *Simulation) AllFoodTick() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latched(s.allTick)
}

// Exhausted reports whether all food has been collected.
func (s *Simulation) Exhausted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allTick != nil
}

func latched(t *uint64) (uint64, bool) {
	if t == nil {
		return 0, false
	}
	return *t, true
}

// Throughput returns food collected per simulated second since the first
// pickup, measured up to total exhaustion or the current tick.
func (s *Simulation) Throughput() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.throughput()
}

func (s *Simulation) throughput() float64 {
	if s.firstTick == nil {
		return 0
	}
	end := s.tick
	if s.allTick != nil {
		end = *s.allTick
	}
	secs := float64(end-*s.firstTick) / float64(s.cfg.TicksPerSecond)
	if secs == 0 {
		return 0
	}
	return float64(s.collected) / secs
}

// BestPaths returns the shortest tour per food source once computed. ok is
// false until all food is gone and a tour exists.
func (s *Simulation) BestPaths() (map[world.Coord][]world.Coord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.best.computed {
		return nil, false
	}
	out := make(map[world.Coord][]world.Coord, len(s.best.paths))
	for food, p := range s.best.paths {
		out[food] = append([]world.Coord(nil), p...)
	}
	return out, true
}

// Stats returns the step outcome counters.
func (s *Simulation) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// TourCount returns the number of completed tours recorded so far.
func (s *Simulation) TourCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terrain.TourCount()
}

// LogReport writes a progress line for the current tick.
func (s *Simulation) LogReport() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := agents.StateCounts(s.agents)
	slog.Info("colony report",
		"tick", humanize.Comma(int64(s.tick)),
		"time", SimTime(s.tick, s.cfg.TicksPerSecond),
		"collected", fmt.Sprintf("%s/%s", humanize.Comma(int64(s.collected)), humanize.Comma(int64(s.terrain.TotalFood()))),
		"throughput", humanize.FtoaWithDigits(s.throughput(), 2),
		"searching", counts[agents.StateSearching],
		"returning", counts[agents.StateReturning],
		"tours", s.terrain.TourCount(),
		"timeouts", s.stats.Timeouts,
		"trail_max", fmt.Sprintf("%.3f", s.field.Max()),
	)
}
