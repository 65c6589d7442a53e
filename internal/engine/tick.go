// Package engine provides the colony simulation and the tick loop that
// drives it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine drives a simulation forward at a fixed step.
type Engine struct {
	Interval    time.Duration // Base tick interval; 0 runs as fast as possible
	MaxTicks    uint64        // Stop after this many ticks (0 = unbounded)
	ReportEvery uint64        // Call OnReport every N ticks (0 = never)

	// Callbacks, populated during setup.
	OnTick   func(tick uint64) // Every tick
	OnReport func(tick uint64) // Every ReportEvery ticks
	Done     func() bool       // Checked after every tick; true stops the loop

	mu      sync.Mutex
	tick    uint64
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool
	stop    chan struct{}
}

// NewEngine creates an engine paced at ticksPerSecond. A non-positive rate
// runs unpaced.
func NewEngine(ticksPerSecond int) *Engine {
	e := &Engine{speed: 1.0, stop: make(chan struct{})}
	if ticksPerSecond > 0 {
		e.Interval = time.Second / time.Duration(ticksPerSecond)
	}
	return e
}

// Tick returns the number of ticks driven so far.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. 0 pauses; negative values are
// treated as 0.
func (e *Engine) SetSpeed(v float64) {
	if v < 0 {
		v = 0
	}
	e.mu.Lock()
	e.speed = v
	e.mu.Unlock()
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run drives ticks until ctx is done, Stop is called, MaxTicks is reached
// or Done reports true.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	slog.Info("simulation engine started", "tick", e.Tick(), "interval", e.Interval, "speed", e.Speed())

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick(), "reason", ctx.Err())
			return
		case <-e.stop:
			slog.Info("simulation engine stopped", "tick", e.Tick())
			return
		default:
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused; check again shortly.
			e.sleep(ctx, 100*time.Millisecond)
			continue
		}

		start := time.Now()
		if !e.step() {
			slog.Info("simulation engine finished", "tick", e.Tick())
			return
		}

		// Sleep for the remainder of the tick interval, adjusted for speed.
		if e.Interval > 0 {
			target := time.Duration(float64(e.Interval) / speed)
			if elapsed := time.Since(start); elapsed < target {
				e.sleep(ctx, target-elapsed)
			}
		}
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-e.stop:
	case <-timer.C:
	}
}

// Stop halts the loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
}

// step advances by one tick and reports whether the loop should continue.
func (e *Engine) step() bool {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(tick)
	}
	if e.ReportEvery > 0 && tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(tick)
	}

	if e.MaxTicks > 0 && tick >= e.MaxTicks {
		return false
	}
	if e.Done != nil && e.Done() {
		return false
	}
	return true
}

// SimTime renders a tick count as simulated seconds.
func SimTime(tick uint64, ticksPerSecond int) string {
	if ticksPerSecond <= 0 {
		return fmt.Sprintf("tick %d", tick)
	}
	return fmt.Sprintf("%.2fs", float64(tick)/float64(ticksPerSecond))
}
