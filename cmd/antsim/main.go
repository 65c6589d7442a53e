// Command antsim runs one ant colony in real time and serves it over HTTP.
package main

import (
	"context"
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

	"github.com/talgya/antcolony/internal/api"
	"github.com/talgya/antcolony/internal/engine"
	"github.com/talgya/antcolony/internal/experiment"
	"github.com/talgya/antcolony/internal/persistence"
	"github.com/talgya/antcolony/internal/world"
)

func main() {
	level := slog.LevelInfo
	if envOrDefault("ANTSIM_LOG", "info") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("antsim: ant colony foraging simulation")

	// ── Configuration ─────────────────────────────────────────────────
	cfg, params, err := configFromEnv()
	if err != nil {
		slog.Error("bad configuration", "error", err)
		os.Exit(1)
	}
	apiPort := envIntOrDefault("ANTSIM_PORT", 8080)
	streamEvery := uint64(envIntOrDefault("ANTSIM_STREAM_EVERY", 4))
	reportEvery := uint64(envIntOrDefault("ANTSIM_REPORT_EVERY", 600))
	maxTicks := uint64(envIntOrDefault("ANTSIM_MAX_TICKS", 0))
	keepTicking := envOrDefault("ANTSIM_KEEP_TICKING", "") != ""
	exitOnDone := envOrDefault("ANTSIM_EXIT_ON_DONE", "") != ""

	// ── Database (optional) ───────────────────────────────────────────
	var db *persistence.DB
	if dbPath := envOrDefault("ANTSIM_DB", ""); dbPath != "" {
		os.MkdirAll(filepath.Dir(dbPath), 0755)
		db, err = persistence.Open(dbPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", dbPath)
	}

	// ── Colony ────────────────────────────────────────────────────────
	sim, err := engine.New(cfg)
	if err != nil {
		slog.Error("failed to build colony", "error", err)
		os.Exit(1)
	}
	pl := sim.Placement()
	slog.Info("colony ready",
		"seed", sim.Seed(),
		"grid", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"agents", cfg.Agents,
		"food", humanize.Comma(int64(sim.TotalFood())),
		"sources", pl.FoodPlaced,
		"walls", pl.WallsPlaced,
		"params", params.String(),
	)
	if pl.FoodPlaced < pl.FoodRequested || pl.WallsPlaced < pl.WallsRequested {
		slog.Warn("placement fell short",
			"food", fmt.Sprintf("%d/%d", pl.FoodPlaced, pl.FoodRequested),
			"walls", fmt.Sprintf("%d/%d", pl.WallsPlaced, pl.WallsRequested),
		)
	}

	eng := engine.NewEngine(cfg.TicksPerSecond)
	eng.MaxTicks = maxTicks
	eng.ReportEvery = reportEvery

	rec := experiment.NewRecorder(sim, params, 0)
	eng.OnReport = func(uint64) { sim.LogReport() }
	if !keepTicking {
		eng.Done = sim.Exhausted
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("ANTSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("ANTSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:            sim,
		Eng:            eng,
		DB:             db,
		Port:           apiPort,
		AdminKey:       adminKey,
		PheromoneLimit: envIntOrDefault("ANTSIM_PHEROMONE_LIMIT", 120),
	}
	apiServer.Stream = api.NewStream(apiServer.HelloFrame)

	exhaustedLogged := false
	eng.OnTick = func(tick uint64) {
		sim.Tick()
		rec.Observe()
		if streamEvery > 0 && tick%streamEvery == 0 {
			apiServer.BroadcastStatus()
		}
		if sim.Exhausted() && !exhaustedLogged {
			exhaustedLogged = true
			sim.LogReport()
			apiServer.BroadcastStatus()
		}
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nColony is foraging: %d ants, %d food in %d sources on a %dx%d grid.\n",
		cfg.Agents, sim.TotalFood(), pl.FoodPlaced, cfg.Width, cfg.Height)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	res := rec.Finish()
	logResult(res)

	if db != nil {
		if err := db.SaveResult(res); err != nil {
			slog.Error("save result failed", "error", err)
		} else {
			db.SaveMeta("last_run", res.RunID.String())
			slog.Info("result saved", "run", res.RunID)
		}
	}

	if !exitOnDone && ctx.Err() == nil {
		// Keep serving the final state until interrupted.
		slog.Info("run finished, still serving (Ctrl+C to exit)")
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	fmt.Println("Simulation stopped.")
}

func logResult(res *experiment.Result) {
	attrs := []any{
		"run", res.RunID,
		"ticks", humanize.Comma(int64(res.Ticks)),
		"collected", fmt.Sprintf("%d/%d", res.Collected, res.TotalFood),
		"throughput", humanize.FtoaWithDigits(res.Throughput, 2),
		"tours", res.Tours,
	}
	if res.FirstPickupTick != nil {
		attrs = append(attrs, "first_pickup", engine.SimTime(*res.FirstPickupTick, res.Config.TicksPerSecond))
	}
	if res.AllFoodTick != nil {
		attrs = append(attrs, "all_food", engine.SimTime(*res.AllFoodTick, res.Config.TicksPerSecond))
	}
	slog.Info("run summary", attrs...)
	for _, bp := range res.BestPaths {
		slog.Info("best path", "food", bp.Food, "steps", bp.Steps())
	}
}

// configFromEnv starts from DefaultConfig and applies ANTSIM_* overrides.
// Every sweep parameter name is accepted (ANTSIM_RHO, ANTSIM_N_ANTS, ...)
// and reported back as the run's params.
func configFromEnv() (engine.Config, experiment.Params, error) {
	cfg := engine.DefaultConfig()
	cfg.Width = envIntOrDefault("ANTSIM_WIDTH", cfg.Width)
	cfg.Height = envIntOrDefault("ANTSIM_HEIGHT", cfg.Height)
	cfg.TicksPerSecond = envIntOrDefault("ANTSIM_TPS", cfg.TicksPerSecond)
	cfg.NoiseThreshold = envFloatOrDefault("ANTSIM_NOISE_THRESHOLD", cfg.NoiseThreshold)

	if v := envOrDefault("ANTSIM_LAYOUT", ""); v != "" {
		layout, ok := world.ParseWallLayout(v)
		if !ok {
			return cfg, nil, fmt.Errorf("unknown wall layout %q", v)
		}
		cfg.WallLayout = layout
	}
	if v := envOrDefault("ANTSIM_NEST", ""); v != "" {
		nest, err := parseCoord(v)
		if err != nil {
			return cfg, nil, fmt.Errorf("ANTSIM_NEST: %w", err)
		}
		cfg.Nest = &nest
	}

	params := experiment.Params{}
	for _, name := range experiment.ParamNames() {
		v := os.Getenv("ANTSIM_" + name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, nil, fmt.Errorf("ANTSIM_%s: %w", name, err)
		}
		params[name] = f
	}
	cfg, err := experiment.Apply(cfg, params)
	return cfg, params, err
}

// parseCoord reads "x,y".
func parseCoord(s string) (world.Coord, error) {
	x, y, ok := strings.Cut(s, ",")
	if !ok {
		return world.Coord{}, fmt.Errorf("want x,y, got %q", s)
	}
	cx, err := strconv.Atoi(strings.TrimSpace(x))
	if err != nil {
		return world.Coord{}, err
	}
	cy, err := strconv.Atoi(strings.TrimSpace(y))
	if err != nil {
		return world.Coord{}, err
	}
	return world.Coord{X: cx, Y: cy}, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloatOrDefault(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
