package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/antcolony/internal/api"
	"github.com/talgya/antcolony/internal/engine"
	"github.com/talgya/antcolony/internal/experiment"
	"github.com/talgya/antcolony/internal/persistence"
	"github.com/talgya/antcolony/internal/world"
)

func newServer(t *testing.T, opts ...func(*api.Server)) (*api.Server, *httptest.Server) {
	t.Helper()
	sim, err := engine.New(engine.SmallTestConfig())
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		sim.Tick()
	}

	s := &api.Server{Sim: sim, Eng: engine.NewEngine(120), AdminKey: "secret", PheromoneLimit: 3}
	s.Stream = api.NewStream(s.HelloFrame)
	for _, opt := range opts {
		opt(s)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown(context.Background())
	})
	return s, ts
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestStatus(t *testing.T) {
	_, ts := newServer(t)
	var body struct {
		Status  engine.Status `json:"status"`
		Speed   float64       `json:"speed"`
		Running bool          `json:"running"`
	}
	resp := getJSON(t, ts.URL+"/api/v1/status", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, uint64(30), body.Status.Tick)
	assert.Equal(t, int64(42), body.Status.Seed)
	assert.Equal(t, body.Status.TotalFood, body.Status.Remaining+body.Status.Collected)
	assert.Equal(t, 1.0, body.Speed)
	assert.False(t, body.Running)
}

func TestMap(t *testing.T) {
	s, ts := newServer(t)
	var body struct {
		Width  int               `json:"width"`
		Height int               `json:"height"`
		Nest   world.Coord       `json:"nest"`
		Cells  []int             `json:"cells"`
		Food   []engine.FoodView `json:"food"`
		Kinds  map[string]string `json:"kinds"`
	}
	getJSON(t, ts.URL+"/api/v1/map", &body)

	assert.Equal(t, 15, body.Width)
	assert.Equal(t, 15, body.Height)
	assert.Equal(t, world.Coord{X: 7, Y: 7}, body.Nest)
	require.Len(t, body.Cells, 15*15)
	assert.Equal(t, int(world.CellNest), body.Cells[7*15+7])
	assert.Equal(t, "Wall", body.Kinds["1"])
	for _, f := range body.Food {
		assert.Equal(t, int(world.CellFood), body.Cells[f.Position.Y*15+f.Position.X])
		assert.Equal(t, world.CellFood, s.Sim.CellKind(f.Position))
	}
}

func TestAgentsFilter(t *testing.T) {
	s, ts := newServer(t)
	var all []engine.AgentView
	getJSON(t, ts.URL+"/api/v1/agents", &all)
	assert.Len(t, all, s.Sim.Config().Agents)

	var searching []map[string]any
	getJSON(t, ts.URL+"/api/v1/agents?state=searching", &searching)
	for _, a := range searching {
		assert.Equal(t, "searching", a["state"])
	}
	assert.LessOrEqual(t, len(searching), len(all))
}

func TestCell(t *testing.T) {
	s, ts := newServer(t)
	var body map[string]any
	resp := getJSON(t, ts.URL+"/api/v1/cell/7/7", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Nest", body["kind"])
	assert.Equal(t, 30.0, body["tick"])
	assert.NotContains(t, body, "food_remaining")

	food := s.Sim.Snapshot().Food
	require.NotEmpty(t, food)
	var cell engine.CellView
	url := fmt.Sprintf("%s/api/v1/cell/%d/%d", ts.URL, food[0].Position.X, food[0].Position.Y)
	getJSON(t, url, &cell)
	assert.Equal(t, "Food", cell.Kind)
	require.NotNil(t, cell.FoodRemaining)
	assert.Equal(t, food[0].Remaining, *cell.FoodRemaining)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/cell/99/1", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/cell/a/b", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/cell/1", nil).StatusCode)
}

func TestPathsBeforeExhaustion(t *testing.T) {
	_, ts := newServer(t)
	var body struct {
		Computed bool  `json:"computed"`
		Paths    []any `json:"paths"`
	}
	getJSON(t, ts.URL+"/api/v1/paths", &body)
	assert.False(t, body.Computed)
	assert.Empty(t, body.Paths)
}

func TestPheromoneRateLimited(t *testing.T) {
	s, ts := newServer(t)
	var body struct {
		Values []float64 `json:"values"`
		Max    float64   `json:"max"`
	}
	resp := getJSON(t, ts.URL+"/api/v1/pheromone", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := s.Sim.Config()
	assert.Len(t, body.Values, cfg.Width*cfg.Height)
	assert.Greater(t, body.Max, 0.0)

	getJSON(t, ts.URL+"/api/v1/pheromone", nil)
	getJSON(t, ts.URL+"/api/v1/pheromone", nil)
	resp = getJSON(t, ts.URL+"/api/v1/pheromone", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestSpeedRequiresToken(t *testing.T) {
	s, ts := newServer(t)

	post := func(token, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/speed", strings.NewReader(body))
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	assert.Equal(t, http.StatusUnauthorized, post("", `{"speed": 2}`).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, post("wrong", `{"speed": 2}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post("secret", `{"speed": -1}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post("secret", `nope`).StatusCode)
	assert.Equal(t, http.StatusOK, post("secret", `{"speed": 4}`).StatusCode)
	assert.Equal(t, 4.0, s.Eng.Speed())

	var body map[string]float64
	getJSON(t, ts.URL+"/api/v1/speed", &body)
	assert.Equal(t, 4.0, body["speed"])
}

func TestSpeedDisabledWithoutKey(t *testing.T) {
	_, ts := newServer(t, func(s *api.Server) { s.AdminKey = "" })
	resp, err := http.Post(ts.URL+"/api/v1/speed", "application/json", strings.NewReader(`{"speed": 2}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	_, ts := newServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/status", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRuns(t *testing.T) {
	_, bare := newServer(t)
	assert.Equal(t, http.StatusNotFound, getJSON(t, bare.URL+"/api/v1/runs", nil).StatusCode)

	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer db.Close()
	_, ts := newServer(t, func(s *api.Server) { s.DB = db })

	first := uint64(5)
	require.NoError(t, db.SaveResult(&experiment.Result{
		Params:          experiment.Params{"RHO": 0.1},
		Seed:            3,
		FirstPickupTick: &first,
	}))

	var rows []map[string]any
	resp := getJSON(t, ts.URL+"/api/v1/runs?limit=5", &rows)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, rows, 1)
	assert.Equal(t, 3.0, rows[0]["seed"])
	assert.Equal(t, 5.0, rows[0]["first_pickup_tick"])
	assert.Nil(t, rows[0]["all_food_tick"])
	assert.Equal(t, map[string]any{"RHO": 0.1}, rows[0]["params"])

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/runs?limit=0", nil).StatusCode)
}

func TestStreamHelloAndBroadcast(t *testing.T) {
	s, ts := newServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello api.Frame
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)
	assert.Equal(t, 15, hello.Width)
	assert.Equal(t, uint64(30), hello.Tick)

	require.Eventually(t, func() bool { return s.Stream.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.Sim.Tick()
	s.BroadcastStatus()

	var frame api.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "tick", frame.Type)
	assert.Equal(t, uint64(31), frame.Tick)
	assert.Len(t, frame.Agents, s.Sim.Config().Agents)

	conn.Close()
	require.Eventually(t, func() bool { return s.Stream.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
