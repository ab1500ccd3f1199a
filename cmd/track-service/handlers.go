package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tracklapse/tracklapse/internal/collector"
	"github.com/tracklapse/tracklapse/internal/db"
	"github.com/tracklapse/tracklapse/pkg/track"
)

// archive is the slice of the track repository the API reads from.
type archive interface {
	AircraftTrail(ctx context.Context, icao string, start, end time.Time, resolution string) ([]db.TrackPoint, *db.MetadataRecord, error)
	BulkTimelapse(ctx context.Context, p db.BulkParams) (*db.BulkResult, error)
	UniqueAircraft(ctx context.Context, start, end time.Time, minSightings int) ([]db.UniqueAircraftRow, error)
	StatsSummary(ctx context.Context, days int) (*db.Summary, error)
}

// liveSource is the slice of the collector the live endpoints read.
// *collector.Collector satisfies it.
type liveSource interface {
	Latest() *collector.FeederSnapshot
	Running() bool
}

// Server is the track service HTTP API.
type Server struct {
	router    *chi.Mux
	archive   archive
	collector liveSource
	hub       *liveHub
	dbHealthy func() bool
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "Tracklapse Track Service",
		"version": serviceVersion,
		"components": map[string]string{
			"collector": "active",
			"api":       "active",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.dbHealthy != nil && !s.dbHealthy() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": "disconnected",
		})
		return
	}

	collectorStatus := "stopped"
	if s.collector != nil && s.collector.Running() {
		collectorStatus = "running"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "healthy",
		"database":         "connected",
		"collector":        collectorStatus,
		"live_subscribers": s.hub.count(),
	})
}

// trailPosition is one archived position in the trail payload.
type trailPosition struct {
	Time    string   `json:"time"`
	Lat     float64  `json:"lat"`
	Lon     float64  `json:"lon"`
	AltBaro *int64   `json:"alt_baro"`
	Gs      *float64 `json:"gs"`
	Track   *float64 `json:"track"`
	Flight  *string  `json:"flight"`
}

func (s *Server) handleAircraftTrail(w http.ResponseWriter, r *http.Request) {
	icao := track.CanonicalID(chi.URLParam(r, "icao"))
	if icao == "" {
		httpError(w, http.StatusBadRequest, "missing icao")
		return
	}

	end, err := parseTimeParam(r.URL.Query().Get("end"), time.Now().UTC())
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid end time")
		return
	}
	start, err := parseTimeParam(r.URL.Query().Get("start"), end.Add(-24*time.Hour))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid start time")
		return
	}
	resolution, ok := parseResolution(r.URL.Query().Get("resolution"), "full")
	if !ok {
		httpError(w, http.StatusBadRequest, "resolution must be full, 1min or 5min")
		return
	}

	points, meta, err := s.archive.AircraftTrail(r.Context(), icao, start, end, resolution)
	if err != nil {
		log.Printf("Error fetching track for %s: %v", icao, err)
		httpError(w, http.StatusInternalServerError, "trail query failed")
		return
	}

	positions := make([]trailPosition, 0, len(points))
	for _, p := range points {
		positions = append(positions, trailPosition{
			Time:    p.Time.UTC().Format(time.RFC3339),
			Lat:     p.Lat,
			Lon:     p.Lon,
			AltBaro: nullInt(p.AltBaro),
			Gs:      nullFloat(p.Gs),
			Track:   nullFloat(p.Track),
			Flight:  nullString(p.Flight),
		})
	}

	payload := map[string]interface{}{
		"icao":       icao,
		"start":      start.Format(time.RFC3339),
		"end":        end.Format(time.RFC3339),
		"resolution": resolution,
		"positions":  positions,
	}
	if meta != nil {
		payload["registration"] = meta.Registration.String
		payload["aircraft_type"] = meta.AircraftType.String
		payload["type_description"] = meta.TypeDescription.String
		payload["is_military"] = meta.IsMilitary
	}
	respondJSON(w, http.StatusOK, payload)
}

// bulkPosition is one position in the bulk payload. The altitude key is
// "alt" here for historical reasons; clients accept both spellings.
type bulkPosition struct {
	Time  string   `json:"time"`
	Lat   float64  `json:"lat"`
	Lon   float64  `json:"lon"`
	Alt   *int64   `json:"alt"`
	Gs    *float64 `json:"gs"`
	Track *float64 `json:"track"`
}

type bulkTrack struct {
	ICAO            string         `json:"icao"`
	Flight          *string        `json:"flight"`
	AircraftType    *string        `json:"aircraft_type"`
	Registration    *string        `json:"registration"`
	TypeDescription *string        `json:"type_description"`
	IsMilitary      bool           `json:"is_military"`
	Positions       []bulkPosition `json:"positions"`
}

func (s *Server) handleBulkTimelapse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := parseTimeParam(q.Get("start"), time.Time{})
	if err != nil || start.IsZero() {
		httpError(w, http.StatusBadRequest, "start is required (RFC 3339)")
		return
	}
	end, err := parseTimeParam(q.Get("end"), time.Time{})
	if err != nil || end.IsZero() {
		httpError(w, http.StatusBadRequest, "end is required (RFC 3339)")
		return
	}
	resolution, ok := parseResolution(q.Get("resolution"), "5min")
	if !ok {
		httpError(w, http.StatusBadRequest, "resolution must be full, 1min or 5min")
		return
	}

	maxTracks := 500
	if v := q.Get("max_tracks"); v != "" {
		maxTracks, err = strconv.Atoi(v)
		if err != nil || maxTracks < 1 || maxTracks > 10000 {
			httpError(w, http.StatusBadRequest, "max_tracks must be 1..10000")
			return
		}
	}

	params := db.BulkParams{
		Start:        start,
		End:          end,
		Resolution:   resolution,
		MaxTracks:    maxTracks,
		MilitaryOnly: q.Get("military_only") == "true",
	}
	if v := q.Get("min_altitude"); v != "" {
		alt, err := strconv.Atoi(v)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid min_altitude")
			return
		}
		params.MinAltitude = &alt
	}
	if v := q.Get("max_altitude"); v != "" {
		alt, err := strconv.Atoi(v)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid max_altitude")
			return
		}
		params.MaxAltitude = &alt
	}

	result, err := s.archive.BulkTimelapse(r.Context(), params)
	if err != nil {
		log.Printf("Error fetching bulk tracks: %v", err)
		httpError(w, http.StatusInternalServerError, "bulk query failed")
		return
	}

	tracks := make([]bulkTrack, 0, len(result.Tracks))
	for _, t := range result.Tracks {
		bt := bulkTrack{
			ICAO:            t.ICAO,
			Flight:          nullString(t.Flight),
			AircraftType:    nullString(t.AircraftType),
			Registration:    nullString(t.Registration),
			TypeDescription: nullString(t.TypeDescription),
			IsMilitary:      t.IsMilitary,
			Positions:       make([]bulkPosition, 0, len(t.Positions)),
		}
		for _, p := range t.Positions {
			bt.Positions = append(bt.Positions, bulkPosition{
				Time:  p.Time.UTC().Format(time.RFC3339),
				Lat:   p.Lat,
				Lon:   p.Lon,
				Alt:   nullInt(p.AltBaro),
				Gs:    nullFloat(p.Gs),
				Track: nullFloat(p.Track),
			})
		}
		tracks = append(tracks, bt)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"time_range": map[string]string{
			"start":      start.Format(time.RFC3339),
			"end":        end.Format(time.RFC3339),
			"resolution": resolution,
		},
		"stats": map[string]interface{}{
			"unique_aircraft": len(tracks),
			"total_positions": result.TotalPositions,
			"time_span_hours": end.Sub(start).Hours(),
		},
		"tracks": tracks,
	})
}

func (s *Server) handleUniqueAircraft(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	end, err := parseTimeParam(q.Get("end"), time.Now().UTC())
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid end time")
		return
	}
	start, err := parseTimeParam(q.Get("start"), end.Add(-30*24*time.Hour))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid start time")
		return
	}
	minSightings := 1
	if v := q.Get("min_sightings"); v != "" {
		minSightings, err = strconv.Atoi(v)
		if err != nil || minSightings < 1 {
			httpError(w, http.StatusBadRequest, "invalid min_sightings")
			return
		}
	}

	rows, err := s.archive.UniqueAircraft(r.Context(), start, end, minSightings)
	if err != nil {
		log.Printf("Error fetching unique aircraft: %v", err)
		httpError(w, http.StatusInternalServerError, "unique aircraft query failed")
		return
	}

	out := make([]map[string]interface{}, 0, len(rows))
	for _, u := range rows {
		out = append(out, map[string]interface{}{
			"icao":             u.ICAO,
			"registration":     nullString(u.Registration),
			"aircraft_type":    nullString(u.AircraftType),
			"type_description": nullString(u.TypeDescription),
			"owner_operator":   nullString(u.OwnerOperator),
			"year":             nullInt(u.Year),
			"days_seen":        u.DaysSeen,
			"last_seen":        u.LastSeen.UTC().Format(time.RFC3339),
			"total_positions":  u.TotalPositions,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		var err error
		days, err = strconv.Atoi(v)
		if err != nil || days < 1 || days > 90 {
			httpError(w, http.StatusBadRequest, "days must be 1..90")
			return
		}
	}

	s2, err := s.archive.StatsSummary(r.Context(), days)
	if err != nil {
		log.Printf("Error fetching stats: %v", err)
		httpError(w, http.StatusInternalServerError, "stats query failed")
		return
	}

	payload := map[string]interface{}{
		"period_days":     days,
		"unique_aircraft": s2.UniqueAircraft,
		"total_positions": s2.TotalPositions,
	}
	if s2.FirstPosition.Valid {
		payload["first_position"] = s2.FirstPosition.Time.UTC().Format(time.RFC3339)
	}
	if s2.LastPosition.Valid {
		payload["last_position"] = s2.LastPosition.Time.UTC().Format(time.RFC3339)
	}
	if s2.AvgAltitudeFt.Valid {
		payload["avg_altitude_ft"] = int(s2.AvgAltitudeFt.Float64)
	}
	if s2.MaxAltitudeFt.Valid {
		payload["max_altitude_ft"] = s2.MaxAltitudeFt.Int64
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleLiveAircraft(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		httpError(w, http.StatusServiceUnavailable, "collector not running")
		return
	}
	snapshot := s.collector.Latest()
	if snapshot == nil {
		httpError(w, http.StatusServiceUnavailable, "no snapshot yet")
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// parseTimeParam accepts RFC 3339 or a naive "2006-01-02T15:04:05" stamp,
// which is treated as UTC. Empty input yields the fallback.
func parseTimeParam(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// parseResolution validates the resolution parameter.
func parseResolution(s, fallback string) (string, bool) {
	if s == "" {
		return fallback, true
	}
	switch s {
	case "full", "1min", "5min":
		return s, true
	}
	return "", false
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"detail": msg})
}
