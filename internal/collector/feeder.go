// Package collector polls a readsb/ultrafeeder instance and writes position
// history and airframe metadata into the track archive.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FeederAircraft is one aircraft in the feeder's aircraft.json. Fields match
// the readsb JSON; alt_baro can be the string "ground".
type FeederAircraft struct {
	Hex            string      `json:"hex"`
	Flight         string      `json:"flight"`
	Lat            *float64    `json:"lat"`
	Lon            *float64    `json:"lon"`
	AltBaro        interface{} `json:"alt_baro"`
	AltGeom        *float64    `json:"alt_geom"`
	Gs             *float64    `json:"gs"`
	Track          *float64    `json:"track"`
	BaroRate       *float64    `json:"baro_rate"`
	Squawk         string      `json:"squawk"`
	Emergency      string      `json:"emergency"`
	Category       string      `json:"category"`
	NavAltitudeMCP *float64    `json:"nav_altitude_mcp"`
	RSSI           *float64    `json:"rssi"`
	Messages       *int64      `json:"messages"`
	Seen           *float64    `json:"seen"`

	// Airframe metadata injected by tar1090-db enabled feeders
	Registration  string `json:"r"`
	Type          string `json:"t"`
	Description   string `json:"desc"`
	OwnerOperator string `json:"ownOp"`
	Year          string `json:"year"`
}

// FeederSnapshot is one poll of the feeder.
type FeederSnapshot struct {
	Now      float64          `json:"now"`
	Aircraft []FeederAircraft `json:"aircraft"`
}

// FeederClient reads aircraft data from a readsb-compatible feeder.
type FeederClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFeederClient creates a client for the feeder base URL
// (e.g., "http://ultrafeeder").
func NewFeederClient(baseURL string, timeout time.Duration) *FeederClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FeederClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch reads the current aircraft snapshot from {base}/data/aircraft.json.
func (c *FeederClient) Fetch(ctx context.Context) (*FeederSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/aircraft.json", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aircraft data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feeder returned HTTP %d", resp.StatusCode)
	}

	var snapshot FeederSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode aircraft data: %w", err)
	}
	return &snapshot, nil
}
