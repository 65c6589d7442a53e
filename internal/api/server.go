// Package api provides the HTTP API for observing a running colony.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/antcolony/internal/engine"
	"github.com/talgya/antcolony/internal/persistence"
	"github.com/talgya/antcolony/internal/world"
)

// Server serves the colony state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; enables /api/v1/runs
	Stream   *Stream         // Optional; enables /api/v1/ws
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// PheromoneLimit caps full-field requests per client per minute
	// (0 = 120).
	PheromoneLimit int

	srv     *http.Server
	limiter *RateLimiter
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	limit := s.PheromoneLimit
	if limit <= 0 {
		limit = 120
	}
	if s.limiter == nil {
		s.limiter = NewRateLimiter(limit, time.Minute)
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/map", s.handleMap)
	mux.HandleFunc("/api/v1/pheromone", RateLimitMiddleware(s.limiter, s.handlePheromone))
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/paths", s.handlePaths)
	mux.HandleFunc("/api/v1/cell/", s.handleCell)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	if s.Stream != nil {
		mux.Handle("/api/v1/ws", s.Stream)
	}

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "stream", s.Stream != nil)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server and closes stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.Stream != nil {
		s.Stream.Close()
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// BroadcastStatus pushes the current status to stream clients.
func (s *Server) BroadcastStatus() {
	if s.Stream == nil || s.Stream.Clients() == 0 {
		return
	}
	s.Stream.Broadcast(NewFrame(s.Sim.Status(true)))
}

// HelloFrame describes the grid to a newly connected stream client.
func (s *Server) HelloFrame() Frame {
	f := NewFrame(s.Sim.Status(false))
	f.Type = "hello"
	f.Width = s.Sim.Terrain().Width()
	f.Height = s.Sim.Terrain().Height()
	return f
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no ANTSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Status(false)
	resp := map[string]any{
		"status":    st,
		"placement": s.Sim.Placement(),
		"exhausted": st.AllFoodTick != nil,
	}
	if s.Eng != nil {
		resp["speed"] = s.Eng.Speed()
		resp["running"] = s.Eng.Running()
	}
	writeJSON(w, resp)
}

// handleMap returns the static layout plus remaining food, for the grid
// renderer. Cell kinds are row-major: index = y*width + x.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	cells := make([]int, len(snap.Cells))
	for i, k := range snap.Cells {
		cells[i] = int(k)
	}
	kinds := make(map[int]string)
	for k := world.CellEmpty; k <= world.CellDepletedFood; k++ {
		kinds[int(k)] = k.String()
	}

	writeJSON(w, map[string]any{
		"tick":   snap.Tick,
		"width":  snap.Width,
		"height": snap.Height,
		"nest":   snap.Nest,
		"cells":  cells,
		"kinds":  kinds,
		"food":   snap.Food,
	})
}

func (s *Server) handlePheromone(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	writeJSON(w, map[string]any{
		"tick":   snap.Tick,
		"width":  snap.Width,
		"height": snap.Height,
		"values": snap.Pheromone,
		"max":    snap.PheromoneMax,
		"tau0":   s.Sim.Config().Tau0,
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	list := s.Sim.Agents()

	// Optional filter: ?state=searching|returning
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := list[:0]
		for _, a := range list {
			if a.State.String() == state {
				filtered = append(filtered, a)
			}
		}
		list = filtered
	}
	writeJSON(w, list)
}

func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	type pathEntry struct {
		Food  world.Coord   `json:"food"`
		Steps int           `json:"steps"`
		Path  []world.Coord `json:"path"`
	}

	best, ok := s.Sim.BestPaths()
	entries := make([]pathEntry, 0, len(best))
	for food, p := range best {
		entries = append(entries, pathEntry{Food: food, Steps: len(p) - 1, Path: p})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Food.Y != entries[j].Food.Y {
			return entries[i].Food.Y < entries[j].Food.Y
		}
		return entries[i].Food.X < entries[j].Food.X
	})

	writeJSON(w, map[string]any{
		"computed": ok,
		"tours":    s.Sim.TourCount(),
		"paths":    entries,
	})
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// /api/v1/cell/:x/:y → [0]="api" [1]="v1" [2]="cell" [3]=x [4]=y
	if len(parts) != 5 {
		http.Error(w, "usage: /api/v1/cell/:x/:y", http.StatusBadRequest)
		return
	}
	x, err1 := strconv.Atoi(parts[3])
	y, err2 := strconv.Atoi(parts[4])
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}

	cell, ok := s.Sim.Cell(world.Coord{X: x, Y: y})
	if !ok {
		http.Error(w, "cell not found", http.StatusNotFound)
		return
	}
	writeJSON(w, cell)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no results database configured", http.StatusNotFound)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "limit must be 1-500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.DB.Runs(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "no engine attached", http.StatusNotFound)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
