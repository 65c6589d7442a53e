// Package experiment runs headless colony simulations and collects
// throughput samples for parameter sweeps and baseline comparisons.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/antcolony/internal/engine"
	"github.com/talgya/antcolony/internal/world"
)

// Options bound a single headless run.
type Options struct {
	MaxTicks uint64 // Give up after this many ticks
	Window   uint64 // Sample every Window ticks
}

// DefaultOptions samples every 60 ticks for at most 10,000 ticks.
func DefaultOptions() Options {
	return Options{MaxTicks: 10000, Window: 60}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxTicks == 0 {
		o.MaxTicks = d.MaxTicks
	}
	if o.Window == 0 {
		o.Window = d.Window
	}
	return o
}

// Sample is one throughput measurement.
type Sample struct {
	Tick        uint64  `json:"tick" db:"tick"`
	TimeSeconds float64 `json:"time_seconds" db:"time_seconds"`
	Collected   int     `json:"food_collected" db:"food_collected"`
	Throughput  float64 `json:"throughput" db:"throughput"`
}

// BestPath is the shortest tour found to one food source.
type BestPath struct {
	Food world.Coord   `json:"food"`
	Path []world.Coord `json:"path"`
}

// Steps returns the number of moves on the tour.
func (b BestPath) Steps() int {
	if len(b.Path) == 0 {
		return 0
	}
	return len(b.Path) - 1
}

// Result is everything measured in one run.
type Result struct {
	RunID           uuid.UUID     `json:"run_id"`
	Params          Params        `json:"params"`
	Config          engine.Config `json:"-"`
	Seed            int64         `json:"seed"`
	Ticks           uint64        `json:"ticks"`
	TotalFood       int           `json:"total_food"`
	Collected       int           `json:"collected"`
	FirstPickupTick *uint64       `json:"first_pickup_tick,omitempty"`
	AllFoodTick     *uint64       `json:"all_food_tick,omitempty"`
	Throughput      float64       `json:"throughput"`
	Tours           int           `json:"tours"`
	Stats           engine.Stats  `json:"stats"`
	BestPaths       []BestPath    `json:"best_paths,omitempty"`
	Samples         []Sample      `json:"samples"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Completed reports whether every unit of food was collected.
func (r *Result) Completed() bool { return r.AllFoodTick != nil }

// Run builds a simulation from cfg and drives it to exhaustion or
// opts.MaxTicks. params only label the result; apply them to cfg first.
func Run(ctx context.Context, cfg engine.Config, params Params, opts Options) (*Result, error) {
	sim, err := engine.New(cfg)
	if err != nil {
		return nil, err
	}
	return Drive(ctx, sim, params, opts)
}

// Drive runs an already built simulation headless.
func Drive(ctx context.Context, sim *engine.Simulation, params Params, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	rec := NewRecorder(sim, params, opts.Window)

	for tick := uint64(1); tick <= opts.MaxTicks; tick++ {
		sim.Tick()
		rec.Observe()

		if tick%opts.Window == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("run %s at tick %d: %w", rec.res.RunID, tick, err)
			}
		}
		if sim.Exhausted() {
			break
		}
	}
	return rec.Finish(), nil
}

// Recorder samples a simulation that something else is stepping, such as
// the real-time engine loop. Call Observe after every tick.
type Recorder struct {
	sim        *engine.Simulation
	window     uint64
	windowSecs float64
	res        *Result
	last       int
	start      time.Time
}

// NewRecorder starts a result for sim. window is the sampling interval in
// ticks (0 = default).
func NewRecorder(sim *engine.Simulation, params Params, window uint64) *Recorder {
	if window == 0 {
		window = DefaultOptions().Window
	}
	return &Recorder{
		sim:        sim,
		window:     window,
		windowSecs: float64(window) / float64(sim.Config().TicksPerSecond),
		res: &Result{
			RunID:     uuid.New(),
			Params:    params,
			Config:    sim.Config(),
			Seed:      sim.Seed(),
			TotalFood: sim.TotalFood(),
		},
		start: time.Now(),
	}
}

// Observe takes a sample when the current tick closes a window.
func (r *Recorder) Observe() {
	tick := r.sim.CurrentTick()
	if tick == 0 || tick%r.window != 0 {
		return
	}
	if n := len(r.res.Samples); n > 0 && r.res.Samples[n-1].Tick == tick {
		return
	}
	collected := r.sim.Collected()
	r.res.Samples = append(r.res.Samples, Sample{
		Tick:        tick,
		TimeSeconds: float64(tick) / float64(r.sim.Config().TicksPerSecond),
		Collected:   collected,
		Throughput:  float64(collected-r.last) / r.windowSecs,
	})
	r.last = collected
}

// Finish fills in the totals and returns the result.
func (r *Recorder) Finish() *Result {
	sim, res := r.sim, r.res
	tps := float64(sim.Config().TicksPerSecond)

	if all, ok := sim.AllFoodTick(); ok {
		if n := len(res.Samples); n == 0 || res.Samples[n-1].Tick < all {
			res.Samples = append(res.Samples, Sample{
				Tick:        all,
				TimeSeconds: float64(all) / tps,
				Collected:   sim.Collected(),
				Throughput:  sim.Throughput(),
			})
		}
	}

	res.Ticks = sim.CurrentTick()
	res.Collected = sim.Collected()
	res.Throughput = sim.Throughput()
	res.Tours = sim.TourCount()
	res.Stats = sim.Stats()
	if t, ok := sim.FirstPickupTick(); ok {
		res.FirstPickupTick = &t
	}
	if t, ok := sim.AllFoodTick(); ok {
		res.AllFoodTick = &t
	}
	res.BestPaths = bestPaths(sim)
	res.Elapsed = time.Since(r.start)

	slog.Debug("run finished",
		"run", res.RunID,
		"params", res.Params.String(),
		"ticks", humanize.Comma(int64(res.Ticks)),
		"collected", res.Collected,
		"throughput", humanize.FtoaWithDigits(res.Throughput, 2),
		"elapsed", res.Elapsed.Round(time.Millisecond),
	)
	return res
}

// bestPaths returns the computed best paths, or, for a run that stopped
// before exhaustion, the shortest tour recorded so far per source.
func bestPaths(sim *engine.Simulation) []BestPath {
	paths, ok := sim.BestPaths()
	if !ok {
		paths = make(map[world.Coord][]world.Coord)
		for food, tours := range sim.Terrain().ToursByFood() {
			for _, p := range tours {
				if cur, seen := paths[food]; !seen || len(p) < len(cur) {
					paths[food] = p
				}
			}
		}
	}
	out := make([]BestPath, 0, len(paths))
	for food, p := range paths {
		out = append(out, BestPath{Food: food, Path: append([]world.Coord(nil), p...)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Food.Y != out[j].Food.Y {
			return out[i].Food.Y < out[j].Food.Y
		}
		return out[i].Food.X < out[j].Food.X
	})
	return out
}

// ShortestSteps returns the fewest moves over all best paths, or 0 when
// there are none.
func (r *Result) ShortestSteps() int {
	best := 0
	for _, b := range r.BestPaths {
		if s := b.Steps(); best == 0 || s < best {
			best = s
		}
	}
	return best
}
