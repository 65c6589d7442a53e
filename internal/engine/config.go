package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/antcolony/internal/agents"
	"github.com/talgya/antcolony/internal/world"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every parameter of one simulation run. A Config is a plain
// value: sweeps build a new one per run instead of mutating a shared copy.
type Config struct {
	Seed int64 // 0 = pick a random seed, reported by Simulation.Seed

	// Grid
	Width  int
	Height int
	Nest   *world.Coord // nil = grid center

	// Colony
	Agents int

	// Food
	FoodSources   int
	FoodCapacity  int
	FoodPositions []world.Coord // Preset sources; overrides FoodSources

	// Obstacles
	WallLayout     world.WallLayout
	Walls          int
	WallMinLen     int
	WallMaxLen     int
	NoiseThreshold float64

	// ACO
	Alpha         float64 // Pheromone influence
	Beta          float64 // Heuristic influence
	Rho           float64 // Evaporation rate per tick
	Q             float64 // Pheromone laid per tour
	Tau0          float64 // Initial trail
	Epsilon       float64 // Exploration probability
	SearchTimeout int     // Steps before a searching agent gives up

	// TicksPerSecond converts ticks to simulated seconds for throughput and
	// sets the real-time pace of the engine loop.
	TicksPerSecond int
}

// DefaultConfig returns the standard colony: a 50×50 grid, 50 agents,
// two sources of 200 units and twenty wall segments.
func DefaultConfig() Config {
	return Config{
		Seed:           1,
		Width:          50,
		Height:         50,
		Agents:         50,
		FoodSources:    2,
		FoodCapacity:   200,
		WallLayout:     world.LayoutSegments,
		Walls:          20,
		WallMinLen:     5,
		WallMaxLen:     15,
		NoiseThreshold: 0.68,
		Alpha:          1.0,
		Beta:           3.0,
		Rho:            0.2,
		Q:              100,
		Tau0:           0.1,
		Epsilon:        0.3,
		SearchTimeout:  100,
		TicksPerSecond: 120,
	}
}

// SmallTestConfig returns a tiny colony for rapid iteration.
func SmallTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.Width = 15
	cfg.Height = 15
	cfg.Agents = 10
	cfg.FoodSources = 1
	cfg.FoodCapacity = 20
	cfg.Walls = 3
	cfg.WallMinLen = 2
	cfg.WallMaxLen = 5
	cfg.SearchTimeout = 60
	return cfg
}

// NestCoord returns the configured nest, defaulting to the grid center.
func (c Config) NestCoord() world.Coord {
	if c.Nest != nil {
		return *c.Nest
	}
	return world.Coord{X: c.Width / 2, Y: c.Height / 2}
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: grid must be positive, got %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.Agents <= 0:
		return fmt.Errorf("%w: agent count must be positive, got %d", ErrInvalidConfig, c.Agents)
	case c.Rho < 0 || c.Rho > 1:
		return fmt.Errorf("%w: rho must be in [0,1], got %v", ErrInvalidConfig, c.Rho)
	case c.Epsilon < 0 || c.Epsilon > 1:
		return fmt.Errorf("%w: epsilon must be in [0,1], got %v", ErrInvalidConfig, c.Epsilon)
	case c.Alpha < 0 || c.Beta < 0:
		return fmt.Errorf("%w: alpha and beta must be non-negative", ErrInvalidConfig)
	case c.Q < 0 || c.Tau0 < 0:
		return fmt.Errorf("%w: q and tau0 must be non-negative", ErrInvalidConfig)
	case c.SearchTimeout < 0:
		return fmt.Errorf("%w: search timeout must be non-negative, got %d", ErrInvalidConfig, c.SearchTimeout)
	case c.TicksPerSecond <= 0:
		return fmt.Errorf("%w: ticks per second must be positive, got %d", ErrInvalidConfig, c.TicksPerSecond)
	case c.FoodSources < 0 || c.Walls < 0:
		return fmt.Errorf("%w: food and wall counts must be non-negative", ErrInvalidConfig)
	case c.FoodCapacity <= 0 && (c.FoodSources > 0 || len(c.FoodPositions) > 0):
		return fmt.Errorf("%w: food capacity must be positive, got %d", ErrInvalidConfig, c.FoodCapacity)
	case c.WallLayout == world.LayoutSegments && c.Walls > 0 && (c.WallMinLen <= 0 || c.WallMaxLen < c.WallMinLen):
		return fmt.Errorf("%w: wall length range [%d,%d] is empty", ErrInvalidConfig, c.WallMinLen, c.WallMaxLen)
	}

	nest := c.NestCoord()
	if !inGrid(c, nest) {
		return fmt.Errorf("%w: nest %s outside %dx%d grid", ErrInvalidConfig, nest, c.Width, c.Height)
	}
	for _, f := range c.FoodPositions {
		if !inGrid(c, f) {
			return fmt.Errorf("%w: food %s outside %dx%d grid", ErrInvalidConfig, f, c.Width, c.Height)
		}
	}
	return nil
}

func inGrid(c Config, p world.Coord) bool {
	return p.X >= 0 && p.X < c.Width && p.Y >= 0 && p.Y < c.Height
}

// GenConfig returns the terrain generation parameters for this run.
func (c Config) GenConfig(seed int64) world.GenConfig {
	return world.GenConfig{
		Width:          c.Width,
		Height:         c.Height,
		Nest:           c.NestCoord(),
		FoodPositions:  c.FoodPositions,
		FoodSources:    c.FoodSources,
		FoodCapacity:   c.FoodCapacity,
		Layout:         c.WallLayout,
		Walls:          c.Walls,
		WallMinLen:     c.WallMinLen,
		WallMaxLen:     c.WallMaxLen,
		NoiseThreshold: c.NoiseThreshold,
		NoiseSeed:      seed,
	}
}

// AgentParams returns the per-agent decision constants.
func (c Config) AgentParams() agents.Params {
	return agents.Params{
		Alpha:         c.Alpha,
		Beta:          c.Beta,
		Q:             c.Q,
		Epsilon:       c.Epsilon,
		SearchTimeout: c.SearchTimeout,
	}
}
