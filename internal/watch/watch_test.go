package watch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/antcolony/internal/api"
	"github.com/talgya/antcolony/internal/engine"
	"github.com/talgya/antcolony/internal/watch"
)

func snapshot(collected int, speed float64) *watch.ColonySnapshot {
	snap := &watch.ColonySnapshot{}
	snap.Status.Status.Collected = collected
	snap.Status.Speed = speed
	snap.Status.Running = true
	return snap
}

func memoryOf(collected ...int) *watch.CycleMemory {
	mem := &watch.CycleMemory{}
	for i, c := range collected {
		mem.Record(watch.CycleRecord{Tick: uint64(i+1) * 100, Collected: c})
	}
	return mem
}

func TestDecide(t *testing.T) {
	p := watch.DefaultPolicy()
	exhausted := snapshot(40, 4)
	exhausted.Status.Exhausted = true
	stopped := snapshot(0, 1)
	stopped.Status.Running = false

	tests := []struct {
		name   string
		snap   *watch.ColonySnapshot
		mem    *watch.CycleMemory
		action string
		speed  float64
	}{
		{"exhausted", exhausted, memoryOf(40, 40, 40), "none", 4},
		{"not running", stopped, memoryOf(0, 0, 0), "none", 1},
		{"paused", snapshot(0, 0), memoryOf(0, 0, 0), "none", 0},
		{"too few quiet cycles", snapshot(0, 1), memoryOf(0, 0), "none", 1},
		{"stalled", snapshot(0, 1), memoryOf(0, 0, 0), "fast_forward", 2},
		{"stalled capped", snapshot(5, 12), memoryOf(5, 5, 5), "fast_forward", 16},
		{"at ceiling", snapshot(5, 16), memoryOf(5, 5, 5), "none", 16},
		{"food flowing again", snapshot(9, 8), memoryOf(5, 5, 5), "restore", 1},
		{"food flowing at base", snapshot(9, 1), memoryOf(5, 5, 5), "none", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := watch.Decide(tt.snap, tt.mem, p)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.speed, d.Speed)
			assert.NotEmpty(t, d.Rationale)
		})
	}
}

func TestCycleMemory(t *testing.T) {
	mem := &watch.CycleMemory{}
	_, ok := mem.Last()
	assert.False(t, ok)

	for i := 1; i <= 15; i++ {
		mem.Record(watch.CycleRecord{Tick: uint64(i), Collected: i / 5})
	}
	assert.Len(t, mem.Records, 10)
	last, ok := mem.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(15), last.Tick)
	assert.Equal(t, 1, mem.QuietCycles(3))
	assert.Equal(t, 0, mem.QuietCycles(7))

	mem.Record(watch.CycleRecord{Tick: 2})
	assert.Len(t, mem.Records, 1, "a restarted colony clears history")

	path := filepath.Join(t.TempDir(), "watch.json")
	mem.Save(path)
	assert.Equal(t, mem, watch.LoadMemory(path))
	assert.Empty(t, watch.LoadMemory(filepath.Join(t.TempDir(), "missing.json")).Records)
}

// fakeColony serves canned status responses and records speed changes.
type fakeColony struct {
	mu        sync.Mutex
	collected int
	speed     float64
	posts     []float64
}

func (f *fakeColony) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{
			"status":  engine.Status{Tick: uint64(len(f.posts)+1) * 60, Collected: f.collected},
			"speed":   f.speed,
			"running": true,
		})
	})
	mux.HandleFunc("/api/v1/paths", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"computed": false, "tours": 0, "paths": []}`))
	})
	mux.HandleFunc("/api/v1/speed", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req struct{ Speed float64 }
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.speed = req.Speed
		f.posts = append(f.posts, req.Speed)
		json.NewEncoder(w).Encode(map[string]float64{"speed": f.speed})
	})
	return mux
}

func TestStewardFastForwardsThenRestores(t *testing.T) {
	colony := &fakeColony{speed: 1}
	ts := httptest.NewServer(colony.handler())
	defer ts.Close()

	s := &watch.Steward{
		Observer: watch.NewObserver(ts.URL),
		Actor:    watch.NewActor(ts.URL, "key"),
		Memory:   &watch.CycleMemory{},
		Policy:   watch.Policy{BaseSpeed: 1, MaxSpeed: 4, StallCycles: 1},
	}

	_, d, err := s.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, "none", d.Action)

	_, d, err = s.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, "fast_forward", d.Action)

	_, _, err = s.RunCycle()
	require.NoError(t, err)
	_, _, err = s.RunCycle()
	require.NoError(t, err)

	colony.mu.Lock()
	colony.collected = 3
	colony.mu.Unlock()
	_, d, err = s.RunCycle()
	require.NoError(t, err)
	assert.Equal(t, "restore", d.Action)

	assert.Equal(t, []float64{2, 4, 1}, colony.posts)
}

func TestActorRejectedKey(t *testing.T) {
	ts := httptest.NewServer((&fakeColony{}).handler())
	defer ts.Close()
	_, err := watch.NewActor(ts.URL, "wrong").SetSpeed(2)
	assert.ErrorContains(t, err, "401")
}

func TestObserveLiveServer(t *testing.T) {
	sim, err := engine.New(engine.SmallTestConfig())
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		sim.Tick()
	}
	eng := engine.NewEngine(120)
	srv := &api.Server{Sim: sim, Eng: eng, AdminKey: "key"}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	obs := watch.NewObserver(ts.URL)
	require.True(t, obs.Ready())
	snap, err := obs.Observe()
	require.NoError(t, err)
	assert.Equal(t, uint64(25), snap.Status.Status.Tick)
	assert.Equal(t, sim.TotalFood(), snap.Status.Status.TotalFood)
	assert.False(t, snap.Status.Running)
	assert.False(t, snap.Paths.Computed)

	speed, err := watch.NewActor(ts.URL, "key").SetSpeed(3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, speed)
	assert.Equal(t, 3.0, eng.Speed())

	assert.False(t, watch.NewObserver("http://127.0.0.1:1").Ready())
}
