package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/antcolony/internal/astar"
	"github.com/talgya/antcolony/internal/engine"
	"github.com/talgya/antcolony/internal/entropy"
	"github.com/talgya/antcolony/internal/world"
)

// CompareOptions configure a colony vs A* comparison.
type CompareOptions struct {
	Options
	WallCounts   []int
	Trials       int // Terrains per wall count; 0 = 1
	Neighborhood astar.Neighborhood
}

// Comparison is one colony run and one A* search on the same terrain.
type Comparison struct {
	Walls int         `json:"num_walls" db:"num_walls"`
	Trial int         `json:"trial" db:"trial"`
	Seed  int64       `json:"seed" db:"seed"`
	Food  world.Coord `json:"food" db:"-"`

	Reachable     bool          `json:"reachable" db:"reachable"`
	AStarSteps    int           `json:"astar_steps" db:"astar_steps"`
	AStarExplored int           `json:"astar_explored" db:"astar_explored"`
	AStarTime     time.Duration `json:"astar_time" db:"-"`

	ColonyFirstPickup *uint64 `json:"ant_ticks_to_find,omitempty" db:"ant_ticks_to_find"`
	ColonyBestSteps   int     `json:"ant_best_steps" db:"ant_best_steps"`
	ColonyTicks       uint64  `json:"ant_ticks" db:"ant_ticks"`
}

// Compare generates, for each wall count and trial, a terrain with a
// single food source, then measures both the A* path from the nest and
// a colony run on that same terrain.
func Compare(ctx context.Context, base engine.Config, opts CompareOptions) ([]Comparison, error) {
	trials := max(1, opts.Trials)
	if base.Seed == 0 {
		base.Seed = entropy.CryptoSeed()
	}

	var out []Comparison
	for _, walls := range opts.WallCounts {
		for trial := 0; trial < trials; trial++ {
			cfg := base
			cfg.Walls = walls
			cfg.FoodSources = 1
			cfg.FoodPositions = nil
			cfg.Seed = base.Seed + int64(trial)
			if err := cfg.Validate(); err != nil {
				return nil, err
			}

			c, err := compareOne(ctx, cfg, trial, opts)
			if err != nil {
				return nil, err
			}
			slog.Info("comparison",
				"walls", walls,
				"trial", trial,
				"astar_steps", c.AStarSteps,
				"ant_first_pickup", c.ColonyFirstPickup,
				"ant_best_steps", c.ColonyBestSteps,
			)
			out = append(out, c)
		}
	}
	return out, nil
}

func compareOne(ctx context.Context, cfg engine.Config, trial int, opts CompareOptions) (Comparison, error) {
	terrain, _ := world.Generate(cfg.GenConfig(cfg.Seed), entropy.NewRand(cfg.Seed, entropy.StreamTerrain))
	c := Comparison{Walls: cfg.Walls, Trial: trial, Seed: cfg.Seed}

	foods := terrain.ActiveFood()
	if len(foods) == 0 {
		return c, fmt.Errorf("walls=%d trial=%d: no food placed", cfg.Walls, trial)
	}
	c.Food = foods[0]

	start := time.Now()
	path, err := astar.Find(terrain, terrain.Nest(), c.Food, opts.Neighborhood)
	c.AStarTime = time.Since(start)
	c.AStarExplored = path.Explored
	switch {
	case err == nil:
		c.Reachable = true
		c.AStarSteps = path.Steps()
	case errors.Is(err, astar.ErrNoPath):
	default:
		return c, err
	}

	sim, err := engine.NewWithTerrain(cfg, terrain)
	if err != nil {
		return c, err
	}
	res, err := Drive(ctx, sim, Params{ParamWalls: float64(cfg.Walls)}, opts.Options)
	if err != nil {
		return c, err
	}
	c.ColonyFirstPickup = res.FirstPickupTick
	c.ColonyBestSteps = res.ShortestSteps()
	c.ColonyTicks = res.Ticks
	return c, nil
}
