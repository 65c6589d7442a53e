// Command antbatch runs headless colony experiments: parameter sweeps that
// write throughput CSV and charts, and colony vs A* comparisons.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/antcolony/internal/astar"
	"github.com/talgya/antcolony/internal/engine"
	"github.com/talgya/antcolony/internal/entropy"
	"github.com/talgya/antcolony/internal/experiment"
	"github.com/talgya/antcolony/internal/persistence"
)

// rangeFlags collects repeated -range KEY=v1,v2 flags.
type rangeFlags []experiment.Range

func (r *rangeFlags) String() string {
	parts := make([]string, len(*r))
	for i, rg := range *r {
		parts[i] = rg.Key
	}
	return strings.Join(parts, " ")
}

func (r *rangeFlags) Set(s string) error {
	rg, err := experiment.ParseRange(s)
	if err != nil {
		return err
	}
	*r = append(*r, rg)
	return nil
}

var (
	ranges    rangeFlags
	small     = flag.Bool("small", false, "Use the small test colony instead of the default 50x50 grid")
	seed      = flag.Int64("seed", 1, "Base seed (0 = random)")
	maxTicks  = flag.Uint64("ticks", 10000, "Stop each run after N ticks")
	window    = flag.Uint64("window", 60, "Sample throughput every N ticks")
	workers   = flag.Int("workers", 0, "Concurrent runs (0 = GOMAXPROCS)")
	trials    = flag.Int("trials", 1, "Seeds per parameter point")
	outDir    = flag.String("out", "results", "Directory for CSV and PNG output")
	dbPath    = flag.String("db", "", "Also store results in this SQLite file")
	noCharts  = flag.Bool("no-charts", false, "Skip PNG charts")
	compare   = flag.Bool("compare", false, "Run the colony vs A* comparison instead of a sweep")
	wallsList = flag.String("walls", "0,5,10,20,40", "Wall counts for -compare")
	diagonal  = flag.Bool("diagonal", false, "Let A* move diagonally in -compare")
	verbose   = flag.Bool("v", false, "Debug logging")
)

func main() {
	flag.Var(&ranges, "range", "Sweep KEY=v1,v2,... (repeatable; keys: "+strings.Join(experiment.ParamNames(), ", ")+")")
	for _, name := range experiment.ParamNames() {
		if name == experiment.ParamSeed {
			continue // -seed sets the base seed
		}
		flag.Func(strings.ToLower(name), "Sweep "+name+" over v1,v2,...", func(s string) error {
			return ranges.Set(name + "=" + s)
		})
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("antbatch failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	base := engine.DefaultConfig()
	if *small {
		base = engine.SmallTestConfig()
	}
	base.Seed = *seed
	if base.Seed == 0 {
		base.Seed = entropy.CryptoSeed()
		slog.Info("picked random base seed", "seed", base.Seed)
	}
	if err := base.Validate(); err != nil {
		return err
	}
	opts := experiment.Options{MaxTicks: *maxTicks, Window: *window}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var db *persistence.DB
	if *dbPath != "" {
		var err error
		if db, err = persistence.Open(*dbPath); err != nil {
			return err
		}
		defer db.Close()
	}

	stamp := time.Now().Format("20060102_150405")
	if *compare {
		return runCompare(ctx, base, opts, db, stamp)
	}
	return runSweep(ctx, base, opts, db, stamp)
}

func runSweep(ctx context.Context, base engine.Config, opts experiment.Options, db *persistence.DB, stamp string) error {
	grid := experiment.ParameterGrid(ranges...)
	slog.Info("sweep starting",
		"points", len(grid),
		"trials", *trials,
		"runs", humanize.Comma(int64(len(grid)*max(1, *trials))),
		"ranges", ranges.String(),
	)

	start := time.Now()
	results, err := experiment.RunBatch(ctx, base, grid, experiment.BatchOptions{
		Options: opts,
		Workers: *workers,
		Trials:  *trials,
	})
	if err != nil {
		return err
	}

	completed := 0
	for _, r := range results {
		if r.Completed() {
			completed++
		}
		slog.Info("run result",
			"params", r.Params.String(),
			"seed", r.Seed,
			"collected", fmt.Sprintf("%d/%d", r.Collected, r.TotalFood),
			"throughput", humanize.FtoaWithDigits(r.Throughput, 2),
			"best_steps", r.ShortestSteps(),
		)
	}

	csvPath := filepath.Join(*outDir, "aco_results_"+stamp+".csv")
	if err := writeFile(csvPath, func(f *os.File) error { return experiment.WriteCSV(f, results) }); err != nil {
		return err
	}
	slog.Info("throughput CSV written", "path", csvPath)

	if !*noCharts {
		pngPath := filepath.Join(*outDir, "aco_throughput_"+stamp+".png")
		err := writeFile(pngPath, func(f *os.File) error { return experiment.WriteThroughputChart(f, results) })
		switch {
		case err == nil:
			slog.Info("throughput chart written", "path", pngPath)
		case errors.Is(err, experiment.ErrNotEnoughData):
			slog.Warn("throughput chart skipped", "reason", err)
			os.Remove(pngPath)
		default:
			return err
		}
	}

	if db != nil {
		if err := db.SaveResults(results); err != nil {
			return err
		}
		db.SaveMeta("last_sweep", stamp)
	}

	fmt.Printf("\n%d runs (%d completed) in %s. Output in %s\n",
		len(results), completed, time.Since(start).Round(time.Millisecond), *outDir)
	return nil
}

func runCompare(ctx context.Context, base engine.Config, opts experiment.Options, db *persistence.DB, stamp string) error {
	walls, err := parseInts(*wallsList)
	if err != nil {
		return fmt.Errorf("-walls: %w", err)
	}
	hood := astar.Four
	if *diagonal {
		hood = astar.Eight
	}

	comps, err := experiment.Compare(ctx, base, experiment.CompareOptions{
		Options:      opts,
		WallCounts:   walls,
		Trials:       *trials,
		Neighborhood: hood,
	})
	if err != nil {
		return err
	}

	for _, s := range experiment.Summarize(comps) {
		slog.Info("wall summary",
			"walls", s.Walls,
			"astar_steps", humanize.FtoaWithDigits(s.AStarSteps, 1),
			"ant_best_steps", humanize.FtoaWithDigits(s.ColonyBestSteps, 1),
			"ant_first_find", humanize.FtoaWithDigits(s.ColonyFirstFind, 1),
		)
	}

	csvPath := filepath.Join(*outDir, "comparison_"+stamp+".csv")
	if err := writeFile(csvPath, func(f *os.File) error { return experiment.WriteComparisonCSV(f, comps) }); err != nil {
		return err
	}
	slog.Info("comparison CSV written", "path", csvPath)

	if !*noCharts {
		pngPath := filepath.Join(*outDir, "comparison_"+stamp+".png")
		err := writeFile(pngPath, func(f *os.File) error { return experiment.WriteComparisonChart(f, comps) })
		switch {
		case err == nil:
			slog.Info("comparison chart written", "path", pngPath)
		case errors.Is(err, experiment.ErrNotEnoughData):
			slog.Warn("comparison chart skipped", "reason", err)
			os.Remove(pngPath)
		default:
			return err
		}
	}

	if db != nil {
		batch := uuid.NewString()
		if err := db.SaveComparisons(batch, comps); err != nil {
			return err
		}
		db.SaveMeta("last_comparison", batch)
		slog.Info("comparisons saved", "batch", batch)
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("negative wall count %d", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no wall counts in %q", s)
	}
	return out, nil
}
