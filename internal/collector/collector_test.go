package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tracklapse/tracklapse/internal/db"
)

func fptr(v float64) *float64 { return &v }

// fakeArchive records what the collector writes. The first failInserts
// insert calls fail with a connection error.
type fakeArchive struct {
	positions   []db.PositionRecord
	metadata    []db.MetadataRecord
	insertCalls int
	failInserts int
}

func (a *fakeArchive) InsertPositions(ctx context.Context, records []db.PositionRecord) error {
	a.insertCalls++
	if a.failInserts > 0 {
		a.failInserts--
		return errors.New("write tcp 127.0.0.1:5432: connection refused")
	}
	a.positions = append(a.positions, records...)
	return nil
}

func (a *fakeArchive) UpsertMetadata(ctx context.Context, records []db.MetadataRecord) error {
	a.metadata = append(a.metadata, records...)
	return nil
}

// TestBuildRecords tests snapshot-to-row conversion rules.
func TestBuildRecords(t *testing.T) {
	c := New(&fakeArchive{}, nil, nil, time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	snapshot := &FeederSnapshot{
		Aircraft: []FeederAircraft{
			// Complete record with metadata.
			{
				Hex: "ABC123", Flight: "UAL123  ",
				Lat: fptr(35.0), Lon: fptr(-80.0),
				AltBaro: 35000.0, Gs: fptr(450.0),
				Registration: "N12345", Type: "B738", Year: "2015",
			},
			// On the ground.
			{
				Hex: "DEF456",
				Lat: fptr(35.1), Lon: fptr(-80.1),
				AltBaro: "ground",
			},
			// No position, skipped entirely.
			{Hex: "FFF999", AltBaro: 10000.0},
			// No hex, skipped.
			{Lat: fptr(35.2), Lon: fptr(-80.2)},
			// Position but no metadata fields: position only.
			{
				Hex: "0A1B2C",
				Lat: fptr(35.3), Lon: fptr(-80.3),
			},
		},
	}

	positions, metadata := c.buildRecords(snapshot, now)

	if len(positions) != 3 {
		t.Fatalf("Expected 3 position records, got %d", len(positions))
	}
	if len(metadata) != 1 {
		t.Fatalf("Expected 1 metadata record, got %d", len(metadata))
	}

	first := positions[0]
	if first.ICAO != "abc123" {
		t.Errorf("Expected lowercase icao abc123, got %s", first.ICAO)
	}
	if !first.Flight.Valid || first.Flight.String != "UAL123" {
		t.Errorf("Expected trimmed flight UAL123, got %v", first.Flight)
	}
	if !first.AltBaro.Valid || first.AltBaro.Int64 != 35000 {
		t.Errorf("Expected altitude 35000, got %v", first.AltBaro)
	}

	ground := positions[1]
	if !ground.AltBaro.Valid || ground.AltBaro.Int64 != 0 {
		t.Errorf("Ground altitude should store as 0, got %v", ground.AltBaro)
	}

	bare := positions[2]
	if bare.AltBaro.Valid {
		t.Error("Missing altitude should store as NULL")
	}

	meta := metadata[0]
	if meta.ICAO != "abc123" {
		t.Errorf("Expected metadata for abc123, got %s", meta.ICAO)
	}
	if !meta.Registration.Valid || meta.Registration.String != "N12345" {
		t.Errorf("Registration lost: %v", meta.Registration)
	}
	if !meta.Year.Valid || meta.Year.Int64 != 2015 {
		t.Errorf("Year lost: %v", meta.Year)
	}
	if meta.IsMilitary {
		t.Error("No military database loaded, flag should be false")
	}
}

// TestParseBaroAltitude tests the readsb altitude quirks.
func TestParseBaroAltitude(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  int64
		ok    bool
	}{
		{"float altitude", 35000.0, 35000, true},
		{"ground string", "ground", 0, true},
		{"other string", "unknown", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseBaroAltitude(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseBaroAltitude(%v) = (%d, %v), want (%d, %v)",
					tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// TestNullYear tests feeder year string parsing.
func TestNullYear(t *testing.T) {
	if y := nullYear("2015"); !y.Valid || y.Int64 != 2015 {
		t.Errorf("Expected 2015, got %v", y)
	}
	for _, bad := range []string{"", "0000", "n/a", "0"} {
		if y := nullYear(bad); y.Valid {
			t.Errorf("Expected NULL for %q, got %v", bad, y)
		}
	}
}

// TestPollStoresAndCaches tests one poll end to end against a fake feeder.
func TestPollStoresAndCaches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/aircraft.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{
			"now": 1748779200.0,
			"aircraft": [
				{"hex": "abc123", "lat": 35.0, "lon": -80.0, "alt_baro": 30000, "r": "N12345", "t": "B738"},
				{"hex": "noposition"}
			]
		}`))
	}))
	defer server.Close()

	archive := &fakeArchive{}
	feeder := NewFeederClient(server.URL, 5*time.Second)
	c := New(archive, feeder, nil, time.Second)

	var broadcast *FeederSnapshot
	c.OnSnapshot(func(s *FeederSnapshot) { broadcast = s })

	if err := c.poll(context.Background()); err != nil {
		t.Fatalf("poll failed: %v", err)
	}

	if len(archive.positions) != 1 {
		t.Errorf("Expected 1 stored position, got %d", len(archive.positions))
	}
	if len(archive.metadata) != 1 {
		t.Errorf("Expected 1 metadata upsert, got %d", len(archive.metadata))
	}

	latest := c.Latest()
	if latest == nil || len(latest.Aircraft) != 2 {
		t.Fatal("Latest snapshot not cached")
	}
	if broadcast == nil || broadcast != latest {
		t.Error("Snapshot callback not invoked with cached snapshot")
	}
}

// TestPollRetriesArchiveWrite tests that a transient connection failure on
// the position insert is retried rather than surfaced.
func TestPollRetriesArchiveWrite(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"now": 1748779200.0,
			"aircraft": [{"hex": "abc123", "lat": 35.0, "lon": -80.0, "alt_baro": 30000}]
		}`))
	}))
	defer server.Close()

	archive := &fakeArchive{failInserts: 1}
	c := New(archive, NewFeederClient(server.URL, 5*time.Second), nil, time.Second)

	if err := c.poll(context.Background()); err != nil {
		t.Fatalf("poll failed despite retry: %v", err)
	}
	if archive.insertCalls != 2 {
		t.Errorf("Expected 2 insert attempts, got %d", archive.insertCalls)
	}
	if len(archive.positions) != 1 {
		t.Errorf("Expected 1 stored position after retry, got %d", len(archive.positions))
	}
}

// TestPollFeederDown tests that a dead feeder surfaces an error.
func TestPollFeederDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(&fakeArchive{}, NewFeederClient(server.URL, time.Second), nil, time.Second)
	if err := c.poll(context.Background()); err == nil {
		t.Fatal("Expected error from failing feeder")
	}
	if c.Latest() != nil {
		t.Error("Failed poll must not cache a snapshot")
	}
}
