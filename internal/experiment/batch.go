package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/antcolony/internal/engine"
	"github.com/talgya/antcolony/internal/entropy"
)

// BatchOptions configure a parameter sweep.
type BatchOptions struct {
	Options
	Workers int // Concurrent runs; 0 = GOMAXPROCS
	Trials  int // Seeds per parameter point; 0 = 1
}

type job struct {
	index  int
	cfg    engine.Config
	params Params
}

// RunBatch runs every grid point against base, Trials times each, on a
// pool of workers. Results come back in submission order: grid point
// major, trial minor. The first failure cancels the rest.
//
// Trial 0 uses the configured seed; later trials draw seeds from the
// batch stream of base.Seed, shared across grid points so every point
// sees the same terrains. A zero base seed is resolved once, up front.
func RunBatch(ctx context.Context, base engine.Config, grid []Params, opts BatchOptions) ([]*Result, error) {
	base.Seed = entropy.ResolveSeed(base.Seed)
	trials := max(1, opts.Trials)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	seeds := trialSeeds(base.Seed, trials)
	jobs := make([]job, 0, len(grid)*trials)
	for _, p := range grid {
		for trial := 0; trial < trials; trial++ {
			cfg, err := Apply(base, p)
			if err != nil {
				return nil, err
			}
			params := p
			if trial > 0 {
				cfg.Seed = seeds[trial]
			}
			jobs = append(jobs, job{index: len(jobs), cfg: cfg, params: params})
		}
	}
	workers = min(workers, len(jobs))

	slog.Info("batch started",
		"runs", humanize.Comma(int64(len(jobs))),
		"points", len(grid),
		"trials", trials,
		"workers", workers,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*Result, len(jobs))
	queue := make(chan job)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)
	start := time.Now()

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				res, err := Run(ctx, j.cfg, j.params, opts.Options)

				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("run %d (%s): %w", j.index, j.params, err)
						cancel()
					}
				} else {
					results[j.index] = res
					done++
					slog.Info("batch progress",
						"completed", fmt.Sprintf("%d/%d", done, len(jobs)),
						"pct", humanize.FtoaWithDigits(100*float64(done)/float64(len(jobs)), 1),
						"params", j.params.String(),
						"seed", res.Seed,
						"throughput", humanize.FtoaWithDigits(res.Throughput, 2),
					)
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, j := range jobs {
		select {
		case queue <- j:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Info("batch completed", "runs", len(results), "elapsed", time.Since(start).Round(time.Millisecond))
	return results, nil
}

// trialSeeds returns one seed per trial; index 0 is unused.
func trialSeeds(base int64, trials int) []int64 {
	seeds := make([]int64, trials)
	rng := entropy.NewRand(base, entropy.StreamBatch)
	for i := 1; i < trials; i++ {
		seeds[i] = rng.Int63() | 1
	}
	return seeds
}
