// Package trackapi is the HTTP client for the track service: bulk timelapse
// windows, per-aircraft trails, the live snapshot, and the health probe.
//
// The client rate-limits itself and surfaces HTTP 429 as a typed error with
// Retry-After information so callers can back off sensibly.
package trackapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/tracklapse/tracklapse/pkg/track"
)

const (
	// DefaultTimeout for API requests
	DefaultTimeout = 15 * time.Second

	// DefaultHealthTimeout bounds the health probe; a slow health endpoint
	// is treated the same as a dead one
	DefaultHealthTimeout = 3 * time.Second

	// DefaultRequestsPerSecond is the client-side rate limit
	DefaultRequestsPerSecond = 2
)

// Client is a track service API client.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	limiter       *rate.Limiter
	healthTimeout time.Duration
}

// NewClient creates a client for the given track service base URL
// (e.g., "http://tracker.lan:8000").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:       rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		healthTimeout: DefaultHealthTimeout,
	}
}

// BulkQuery selects a time window for the bulk timelapse endpoint.
type BulkQuery struct {
	// Start and End bound the window (UTC)
	Start time.Time
	End   time.Time

	// Resolution is "full", "1min" or "5min" (default "full")
	Resolution string

	// MaxTracks caps the number of aircraft returned (default 500)
	MaxTracks int

	// MinAltitude/MaxAltitude filter server-side by barometric altitude (feet)
	MinAltitude *int
	MaxAltitude *int

	// MilitaryOnly restricts to aircraft flagged military in the archive
	MilitaryOnly bool
}

// BulkResponse is the bulk timelapse payload: all tracks in a window, grouped
// per aircraft, with summary stats.
type BulkResponse struct {
	TimeRange BulkTimeRange `json:"time_range"`
	Stats     BulkStats     `json:"stats"`
	Tracks    []BulkTrack   `json:"tracks"`
}

// BulkTimeRange echoes the queried window.
type BulkTimeRange struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	Resolution string `json:"resolution"`
}

// BulkStats summarizes the returned data set.
type BulkStats struct {
	UniqueAircraft int     `json:"unique_aircraft"`
	TotalPositions int     `json:"total_positions"`
	TimeSpanHours  float64 `json:"time_span_hours"`
}

// BulkTrack is one aircraft's slice of the window. The aircraft id arrives
// under "hex" or "icao" depending on the service version.
type BulkTrack struct {
	Hex             string              `json:"hex"`
	ICAO            string              `json:"icao"`
	Flight          string              `json:"flight"`
	AircraftType    string              `json:"aircraft_type"`
	Registration    string              `json:"registration"`
	TypeDescription string              `json:"type_description"`
	IsMilitary      bool                `json:"is_military"`
	Positions       []track.RawPosition `json:"positions"`
}

// ID returns the canonical aircraft id, preferring hex over icao.
func (b BulkTrack) ID() string {
	if b.Hex != "" {
		return track.CanonicalID(b.Hex)
	}
	return track.CanonicalID(b.ICAO)
}

// TrailResponse is the per-aircraft full trail payload, including whatever
// metadata the archive has for the airframe.
type TrailResponse struct {
	ICAO            string              `json:"icao"`
	Start           string              `json:"start"`
	End             string              `json:"end"`
	Resolution      string              `json:"resolution"`
	Flight          string              `json:"flight"`
	Registration    string              `json:"registration"`
	AircraftType    string              `json:"aircraft_type"`
	TypeDescription string              `json:"type_description"`
	IsMilitary      bool                `json:"is_military"`
	Positions       []track.RawPosition `json:"positions"`
}

// LiveAircraft is one aircraft in the live snapshot (readsb aircraft.json
// shape, passed through by the service).
type LiveAircraft struct {
	Hex     string      `json:"hex"`
	Flight  string      `json:"flight"`
	Lat     *float64    `json:"lat"`
	Lon     *float64    `json:"lon"`
	AltBaro interface{} `json:"alt_baro"`
	Gs      *float64    `json:"gs"`
	Track   *float64    `json:"track"`
	Seen    *float64    `json:"seen"`
}

// LiveSnapshot is the most recent collector poll.
type LiveSnapshot struct {
	Now      float64        `json:"now"`
	Aircraft []LiveAircraft `json:"aircraft"`
}

// BulkTimelapse fetches all tracks in a time window.
// GET /tracks/bulk/timelapse
func (c *Client) BulkTimelapse(ctx context.Context, q BulkQuery) (*BulkResponse, error) {
	params := url.Values{}
	params.Set("start", q.Start.UTC().Format(time.RFC3339))
	params.Set("end", q.End.UTC().Format(time.RFC3339))
	resolution := q.Resolution
	if resolution == "" {
		resolution = "full"
	}
	params.Set("resolution", resolution)
	maxTracks := q.MaxTracks
	if maxTracks <= 0 {
		maxTracks = 500
	}
	params.Set("max_tracks", strconv.Itoa(maxTracks))
	if q.MinAltitude != nil {
		params.Set("min_altitude", strconv.Itoa(*q.MinAltitude))
	}
	if q.MaxAltitude != nil {
		params.Set("max_altitude", strconv.Itoa(*q.MaxAltitude))
	}
	if q.MilitaryOnly {
		params.Set("military_only", "true")
	}

	var out BulkResponse
	if err := c.getJSON(ctx, "/tracks/bulk/timelapse", params, &out); err != nil {
		return nil, fmt.Errorf("bulk timelapse fetch failed: %w", err)
	}
	return &out, nil
}

// AircraftTrail fetches the full recorded trail for one aircraft.
// GET /tracks/{icao}
func (c *Client) AircraftTrail(ctx context.Context, icao string) (*TrailResponse, error) {
	params := url.Values{}
	params.Set("resolution", "full")

	var out TrailResponse
	path := "/tracks/" + url.PathEscape(track.CanonicalID(icao))
	if err := c.getJSON(ctx, path, params, &out); err != nil {
		return nil, fmt.Errorf("trail fetch for %s failed: %w", icao, err)
	}
	return &out, nil
}

// Live fetches the most recent collected snapshot.
// GET /live/aircraft
func (c *Client) Live(ctx context.Context) (*LiveSnapshot, error) {
	var out LiveSnapshot
	if err := c.getJSON(ctx, "/live/aircraft", nil, &out); err != nil {
		return nil, fmt.Errorf("live snapshot fetch failed: %w", err)
	}
	return &out, nil
}

// Health probes the service with a bounded timeout. Any error (non-2xx,
// timeout, connection refused) means historical mode is unavailable; callers
// disable it for the session rather than retrying.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health probe failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health probe returned status %d", resp.StatusCode)
	}
	return nil
}

// getJSON performs a rate-limited GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "rate limit exceeded",
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("service returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
