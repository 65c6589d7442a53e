// Command antwatch runs the pacing steward for a live antsim colony.
// It polls the colony API, fast-forwards long stretches with no
// deliveries and restores normal speed once food flows again.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/antcolony/internal/watch"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("ANTSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("ANTSIM_ADMIN_KEY")
	intervalSec := envIntOrDefault("ANTWATCH_INTERVAL", 5)
	memoryPath := envOrDefault("ANTWATCH_MEMORY", "antwatch_memory.json")

	policy := watch.DefaultPolicy()
	policy.MaxSpeed = envFloatOrDefault("ANTWATCH_MAX_SPEED", policy.MaxSpeed)
	policy.StallCycles = envIntOrDefault("ANTWATCH_STALL_CYCLES", policy.StallCycles)

	interval := time.Duration(intervalSec) * time.Second

	slog.Info("antwatch starting",
		"api_url", apiURL,
		"interval", interval,
		"max_speed", policy.MaxSpeed,
	)

	steward := &watch.Steward{
		Observer: watch.NewObserver(apiURL),
		Memory:   watch.LoadMemory(memoryPath),
		Policy:   policy,
	}
	if adminKey != "" {
		steward.Actor = watch.NewActor(apiURL, adminKey)
	} else {
		slog.Warn("ANTSIM_ADMIN_KEY not set, observing only")
	}

	slog.Info("waiting for antsim API...")
	waitForAPI(steward.Observer)

	// Run first cycle immediately.
	runCycle(steward, memoryPath)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if done := runCycle(steward, memoryPath); done {
				fmt.Println("Colony finished foraging. antwatch stopped.")
				return
			}
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			fmt.Println("antwatch stopped.")
			return
		}
	}
}

// runCycle runs one steward cycle and reports whether the colony is done.
func runCycle(s *watch.Steward, memoryPath string) bool {
	snap, _, err := s.RunCycle()
	if err != nil {
		slog.Error("watch cycle failed", "error", err)
		return false
	}
	s.Memory.Save(memoryPath)
	return snap.Status.Exhausted
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

// waitForAPI polls the colony status endpoint with exponential backoff
// until it responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(obs *watch.Observer) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for !obs.Ready() {
		if time.Now().After(deadline) {
			slog.Error("antsim API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("antsim not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxBackoff)
	}
	slog.Info("antsim API is ready")
}
