package watch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Actor changes the engine speed via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetSpeed sends POST /api/v1/speed and returns the speed the engine reports.
func (a *Actor) SetSpeed(speed float64) (float64, error) {
	body, err := json.Marshal(map[string]float64{"speed": speed})
	if err != nil {
		return 0, fmt.Errorf("marshal speed: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, a.BaseURL+"/api/v1/speed", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("POST speed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("set speed failed (%d): %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var result struct {
		Speed float64 `json:"speed"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return result.Speed, nil
}
