// Package filter evaluates declarative visibility criteria over tracks.
//
// Numeric bounds are strict: every position in a track must satisfy a bound
// for the track to pass. One out-of-range sample anywhere hides the whole
// track. Unset criteria are permissive, so the zero Criteria passes every
// non-empty track.
package filter

import "github.com/tracklapse/tracklapse/pkg/track"

// Criteria is a set of independent, optional filter predicates combined
// with logical AND. Nil bounds are disabled.
type Criteria struct {
	// MilitaryOnly passes only tracks flagged military (by the service or
	// the external military database lookup)
	MilitaryOnly bool

	// MinAltitude/MaxAltitude bound every sample's altitude (feet)
	MinAltitude *float64
	MaxAltitude *float64

	// MinSpeed/MaxSpeed bound every sample's ground speed (knots)
	MinSpeed *float64
	MaxSpeed *float64

	// MinPositionCount requires at least this many samples
	MinPositionCount int
}

// MilitaryLookup resolves an aircraft id against the external military
// database. A nil lookup treats everything as non-military.
type MilitaryLookup func(id string) bool

// Visible evaluates all criteria against a track.
func Visible(t *track.Track, c Criteria, lookup MilitaryLookup) bool {
	if c.MilitaryOnly {
		military := t.IsMilitary || (lookup != nil && lookup(t.ID))
		if !military {
			return false
		}
	}

	if len(t.Positions) < c.MinPositionCount {
		return false
	}

	for _, p := range t.Positions {
		if c.MinAltitude != nil && p.AltitudeFeet < *c.MinAltitude {
			return false
		}
		if c.MaxAltitude != nil && p.AltitudeFeet > *c.MaxAltitude {
			return false
		}
		if c.MinSpeed != nil && p.GroundSpeedKnots < *c.MinSpeed {
			return false
		}
		if c.MaxSpeed != nil && p.GroundSpeedKnots > *c.MaxSpeed {
			return false
		}
	}
	return true
}
