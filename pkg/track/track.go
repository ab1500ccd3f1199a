// Package track defines the canonical position and track model used by the
// timelapse pipeline, plus the normalization boundary that converts the
// heterogeneous record shapes returned by the track service into it.
//
// Everything downstream of this package (store, heatmap, playback, filters)
// operates on the canonical types only and never branches on raw field names.
package track

import (
	"strings"
	"time"
)

// Position is a single canonical position sample in scene coordinates.
//
// X/Z are the horizontal scene axes produced by the coordinate projector,
// Y is the vertical axis (scaled altitude, floored at the configured minimum
// render altitude so ground traffic stays above the terrain plane).
//
// Samples are stored in the order they were received. The source does not
// guarantee that timestamps are non-decreasing, so code that depends on
// temporal order must compare timestamps explicitly.
type Position struct {
	// X is the scene east-west coordinate
	X float64

	// Y is the scene vertical coordinate (scaled altitude, >= floor)
	Y float64

	// Z is the scene north-south coordinate
	Z float64

	// AltitudeFeet is the reported altitude in feet MSL
	AltitudeFeet float64

	// GroundSpeedKnots is the reported ground speed (0 if not reported)
	GroundSpeedKnots float64

	// TimestampMs is the sample time in Unix milliseconds (UTC)
	TimestampMs int64
}

// Metadata holds the optional identifying fields reported for an aircraft.
type Metadata struct {
	// Callsign is the flight number (e.g., "UAL123")
	Callsign string

	// Registration is the tail number (e.g., "N12345")
	Registration string

	// TypeCode is the ICAO aircraft type designator (e.g., "B738")
	TypeCode string
}

// Track is the full recorded position sequence for one aircraft over a
// queried time window. Tracks are owned exclusively by the store that holds
// them; they are immutable once built.
type Track struct {
	// ID is the ICAO 24-bit address, canonicalized to lowercase hex
	ID string

	// Positions in raw temporal order as received from the service
	Positions []Position

	// IsMilitary is the service-reported military flag
	IsMilitary bool

	// Metadata holds callsign/registration/type when reported
	Metadata Metadata
}

// CanonicalID lowercases an ICAO hex address. The track service stores ICAO
// addresses lowercase; the military database keys uppercase. Everything in
// this repository uses the lowercase form and converts at the boundary.
func CanonicalID(icao string) string {
	return strings.ToLower(strings.TrimSpace(icao))
}

// FirstTimestampMs returns the earliest sample timestamp, scanning explicitly
// because input order is not guaranteed. Returns false for an empty track.
func (t *Track) FirstTimestampMs() (int64, bool) {
	if len(t.Positions) == 0 {
		return 0, false
	}
	first := t.Positions[0].TimestampMs
	for _, p := range t.Positions[1:] {
		if p.TimestampMs < first {
			first = p.TimestampMs
		}
	}
	return first, true
}

// LastTimestampMs returns the latest sample timestamp. Returns false for an
// empty track.
func (t *Track) LastTimestampMs() (int64, bool) {
	if len(t.Positions) == 0 {
		return 0, false
	}
	last := t.Positions[0].TimestampMs
	for _, p := range t.Positions[1:] {
		if p.TimestampMs > last {
			last = p.TimestampMs
		}
	}
	return last, true
}

// Time converts a sample timestamp to a time.Time.
func (p Position) Time() time.Time {
	return time.UnixMilli(p.TimestampMs).UTC()
}
