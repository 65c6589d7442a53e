// Package watch implements a pacing steward for a running colony.
// It observes colony state via the API, decides whether to fast-forward
// or restore the engine speed, and acts via the admin speed endpoint.
package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/antcolony/internal/engine"
	"github.com/talgya/antcolony/internal/world"
)

// ColonySnapshot holds all data collected during an observation cycle.
type ColonySnapshot struct {
	Status ColonyStatus `json:"status"`
	Paths  PathsData    `json:"paths"`
}

// ColonyStatus mirrors GET /api/v1/status.
type ColonyStatus struct {
	Status    engine.Status `json:"status"`
	Exhausted bool          `json:"exhausted"`
	Speed     float64       `json:"speed"`
	Running   bool          `json:"running"`
}

// PathsData mirrors GET /api/v1/paths.
type PathsData struct {
	Computed bool        `json:"computed"`
	Tours    int         `json:"tours"`
	Paths    []PathEntry `json:"paths"`
}

// PathEntry is one best path from the paths endpoint.
type PathEntry struct {
	Food  world.Coord `json:"food"`
	Steps int         `json:"steps"`
}

// Observer fetches colony state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Observe fetches status and paths and returns a ColonySnapshot.
func (o *Observer) Observe() (*ColonySnapshot, error) {
	snap := &ColonySnapshot{}

	if err := o.fetchJSON("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/paths", &snap.Paths); err != nil {
		return nil, fmt.Errorf("fetch paths: %w", err)
	}
	return snap, nil
}

// Ready reports whether the status endpoint answers 200.
func (o *Observer) Ready() bool {
	resp, err := o.HTTPClient.Get(o.BaseURL + "/api/v1/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
