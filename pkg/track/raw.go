package track

import (
	"time"
)

// RawPosition is a position record as returned by the track service. The bulk
// timelapse endpoint and the per-aircraft trail endpoint disagree on field
// names (alt vs alt_baro, gs vs speed), and third-party feeders add their own
// aliases, so every field is optional and aliased. Nothing is guaranteed.
//
// Altitude fields use interface{} because feeders report the string "ground"
// for aircraft on the surface.
type RawPosition struct {
	// Latitude aliases
	Lat      *float64 `json:"lat"`
	Latitude *float64 `json:"latitude"`

	// Longitude aliases
	Lon       *float64 `json:"lon"`
	Longitude *float64 `json:"longitude"`

	// Altitude aliases, most specific first. Can be float or "ground".
	AltBaro  interface{} `json:"alt_baro"`
	Alt      interface{} `json:"alt"`
	Altitude interface{} `json:"altitude"`

	// Timestamp aliases. Either an RFC 3339 string or Unix seconds.
	Time      interface{} `json:"time"`
	Timestamp interface{} `json:"timestamp"`

	// Ground speed aliases (knots)
	Gs          *float64 `json:"gs"`
	Speed       *float64 `json:"speed"`
	GroundSpeed *float64 `json:"ground_speed"`
}

// AltitudeFeet resolves the altitude alias chain: alt_baro wins over alt,
// which wins over altitude. The barometric field is the rawest value the
// feeder has; the generic aliases are derived. Returns false when no field
// parses.
func (r RawPosition) AltitudeFeet() (float64, bool) {
	for _, v := range []interface{}{r.AltBaro, r.Alt, r.Altitude} {
		if alt, ok := parseAltitude(v); ok {
			return alt, true
		}
	}
	return 0, false
}

// LatLon resolves the coordinate aliases. Returns false when either axis is
// missing, which is the normalizer's signal to drop the record.
func (r RawPosition) LatLon() (lat, lon float64, ok bool) {
	switch {
	case r.Lat != nil:
		lat = *r.Lat
	case r.Latitude != nil:
		lat = *r.Latitude
	default:
		return 0, 0, false
	}
	switch {
	case r.Lon != nil:
		lon = *r.Lon
	case r.Longitude != nil:
		lon = *r.Longitude
	default:
		return 0, 0, false
	}
	return lat, lon, true
}

// GroundSpeedKnots resolves the speed aliases, defaulting to 0 when absent.
func (r RawPosition) GroundSpeedKnots() float64 {
	switch {
	case r.Gs != nil:
		return *r.Gs
	case r.Speed != nil:
		return *r.Speed
	case r.GroundSpeed != nil:
		return *r.GroundSpeed
	}
	return 0
}

// TimestampMs resolves the timestamp aliases: a point-level time or timestamp
// field wins, then the supplied capture time, then the moment of processing.
// The fallbacks are degraded but non-fatal; a record is never dropped for a
// missing timestamp.
func (r RawPosition) TimestampMs(capture time.Time) int64 {
	if ms, ok := parseTimestamp(r.Time); ok {
		return ms
	}
	if ms, ok := parseTimestamp(r.Timestamp); ok {
		return ms
	}
	if !capture.IsZero() {
		return capture.UnixMilli()
	}
	return time.Now().UTC().UnixMilli()
}

// parseAltitude extracts feet from a value that can be float64 or the string
// "ground" (reported for aircraft on the surface, treated as 0 ft).
func parseAltitude(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case string:
		if v == "ground" {
			return 0, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// parseTimestamp accepts an RFC 3339 string or Unix seconds (float) and
// returns Unix milliseconds.
func parseTimestamp(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case string:
		if v == "" {
			return 0, false
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UnixMilli(), true
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UnixMilli(), true
		}
		return 0, false
	case float64:
		return int64(v * 1000.0), true
	default:
		return 0, false
	}
}
