package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tracklapse/tracklapse/internal/db"
)

// fakeArchive serves canned query results and records the params it saw.
type fakeArchive struct {
	bulkParams  db.BulkParams
	bulkResult  *db.BulkResult
	trailPoints []db.TrackPoint
	trailMeta   *db.MetadataRecord
	trailRes    string
	summary     *db.Summary
}

func (a *fakeArchive) AircraftTrail(ctx context.Context, icao string, start, end time.Time, resolution string) ([]db.TrackPoint, *db.MetadataRecord, error) {
	a.trailRes = resolution
	return a.trailPoints, a.trailMeta, nil
}

func (a *fakeArchive) BulkTimelapse(ctx context.Context, p db.BulkParams) (*db.BulkResult, error) {
	a.bulkParams = p
	if a.bulkResult != nil {
		return a.bulkResult, nil
	}
	return &db.BulkResult{}, nil
}

func (a *fakeArchive) UniqueAircraft(ctx context.Context, start, end time.Time, minSightings int) ([]db.UniqueAircraftRow, error) {
	return nil, nil
}

func (a *fakeArchive) StatsSummary(ctx context.Context, days int) (*db.Summary, error) {
	if a.summary != nil {
		return a.summary, nil
	}
	return &db.Summary{}, nil
}

func newTestServer(a *fakeArchive) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		archive:   a,
		hub:       newLiveHub(),
		dbHealthy: func() bool { return true },
	}
	s.setupRoutes()
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// TestHealthEndpoint tests healthy and unhealthy states.
func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&fakeArchive{})

	rec := get(t, s, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", body["status"])
	}
	// No collector wired in the test server.
	if body["collector"] != "stopped" {
		t.Errorf("Expected collector stopped, got %v", body["collector"])
	}
	if body["live_subscribers"] != float64(0) {
		t.Errorf("Expected 0 live subscribers, got %v", body["live_subscribers"])
	}

	s.dbHealthy = func() bool { return false }
	rec = get(t, s, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when database is down, got %d", rec.Code)
	}
}

// TestBulkTimelapseParams tests parameter parsing and validation.
func TestBulkTimelapseParams(t *testing.T) {
	a := &fakeArchive{}
	s := newTestServer(a)

	t.Run("Missing start rejected", func(t *testing.T) {
		rec := get(t, s, "/tracks/bulk/timelapse?end=2025-06-01T06:00:00Z")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("Invalid resolution rejected", func(t *testing.T) {
		rec := get(t, s, "/tracks/bulk/timelapse?start=2025-06-01T00:00:00Z&end=2025-06-01T06:00:00Z&resolution=10min")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("Max tracks bounds enforced", func(t *testing.T) {
		rec := get(t, s, "/tracks/bulk/timelapse?start=2025-06-01T00:00:00Z&end=2025-06-01T06:00:00Z&max_tracks=20000")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for max_tracks over cap, got %d", rec.Code)
		}
	})

	t.Run("Full parameter set forwarded", func(t *testing.T) {
		rec := get(t, s, "/tracks/bulk/timelapse?start=2025-06-01T00:00:00Z&end=2025-06-01T06:00:00Z&resolution=full&max_tracks=100&min_altitude=1000&max_altitude=40000&military_only=true")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		p := a.bulkParams
		if p.Resolution != "full" || p.MaxTracks != 100 || !p.MilitaryOnly {
			t.Errorf("Params not forwarded: %+v", p)
		}
		if p.MinAltitude == nil || *p.MinAltitude != 1000 {
			t.Error("min_altitude not forwarded")
		}
		if p.MaxAltitude == nil || *p.MaxAltitude != 40000 {
			t.Error("max_altitude not forwarded")
		}
	})

	t.Run("Naive timestamp treated as UTC", func(t *testing.T) {
		rec := get(t, s, "/tracks/bulk/timelapse?start=2025-06-01T00:00:00&end=2025-06-01T06:00:00")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200 for naive timestamps, got %d", rec.Code)
		}
		want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		if !a.bulkParams.Start.Equal(want) {
			t.Errorf("Naive start not treated as UTC: %v", a.bulkParams.Start)
		}
	})
}

// TestBulkTimelapseResponseShape tests the grouped JSON payload.
func TestBulkTimelapseResponseShape(t *testing.T) {
	ts := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	alt := sql.NullInt64{Int64: 30000, Valid: true}
	a := &fakeArchive{
		bulkResult: &db.BulkResult{
			TotalPositions: 2,
			Tracks: []db.BulkAircraftTrack{{
				ICAO:       "abc123",
				IsMilitary: true,
				Flight:     sql.NullString{String: "UAL1", Valid: true},
				Positions: []db.TrackPoint{
					{Time: ts, Lat: 35, Lon: -80, AltBaro: alt},
					{Time: ts.Add(time.Minute), Lat: 35.1, Lon: -80.1},
				},
			}},
		},
	}
	s := newTestServer(a)

	rec := get(t, s, "/tracks/bulk/timelapse?start=2025-06-01T00:00:00Z&end=2025-06-01T06:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Stats struct {
			UniqueAircraft int     `json:"unique_aircraft"`
			TotalPositions int     `json:"total_positions"`
			TimeSpanHours  float64 `json:"time_span_hours"`
		} `json:"stats"`
		Tracks []struct {
			ICAO       string `json:"icao"`
			IsMilitary bool   `json:"is_military"`
			Positions  []struct {
				Time string `json:"time"`
				Alt  *int64 `json:"alt"`
			} `json:"positions"`
		} `json:"tracks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}

	if body.Stats.UniqueAircraft != 1 || body.Stats.TotalPositions != 2 {
		t.Errorf("Stats wrong: %+v", body.Stats)
	}
	if body.Stats.TimeSpanHours != 6 {
		t.Errorf("Expected 6h span, got %f", body.Stats.TimeSpanHours)
	}
	if len(body.Tracks) != 1 || body.Tracks[0].ICAO != "abc123" || !body.Tracks[0].IsMilitary {
		t.Fatalf("Track shape wrong: %+v", body.Tracks)
	}
	pos := body.Tracks[0].Positions
	if len(pos) != 2 {
		t.Fatalf("Expected 2 positions, got %d", len(pos))
	}
	if pos[0].Alt == nil || *pos[0].Alt != 30000 {
		t.Error("Altitude lost in first position")
	}
	if pos[1].Alt != nil {
		t.Error("Missing altitude should serialize as null")
	}
}

// TestAircraftTrail tests icao canonicalization and metadata merge.
func TestAircraftTrail(t *testing.T) {
	ts := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	a := &fakeArchive{
		trailPoints: []db.TrackPoint{{Time: ts, Lat: 35, Lon: -80}},
		trailMeta: &db.MetadataRecord{
			ICAO:         "ae01ce",
			Registration: sql.NullString{String: "68-0001", Valid: true},
			IsMilitary:   true,
		},
	}
	s := newTestServer(a)

	rec := get(t, s, "/tracks/AE01CE")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["icao"] != "ae01ce" {
		t.Errorf("Expected canonical lowercase icao, got %v", body["icao"])
	}
	if body["is_military"] != true {
		t.Error("Military flag missing from trail payload")
	}
	if a.trailRes != "full" {
		t.Errorf("Expected default full resolution, got %s", a.trailRes)
	}
}

// TestLiveAircraftWithoutCollector tests the degraded live endpoint.
func TestLiveAircraftWithoutCollector(t *testing.T) {
	s := newTestServer(&fakeArchive{})
	rec := get(t, s, "/live/aircraft")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without collector, got %d", rec.Code)
	}
}

// TestStatsSummaryValidation tests the days parameter bounds.
func TestStatsSummaryValidation(t *testing.T) {
	s := newTestServer(&fakeArchive{})

	if rec := get(t, s, "/stats/summary?days=0"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for days=0, got %d", rec.Code)
	}
	if rec := get(t, s, "/stats/summary?days=91"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for days=91, got %d", rec.Code)
	}
	if rec := get(t, s, "/stats/summary?days=7"); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for days=7, got %d", rec.Code)
	}
}
