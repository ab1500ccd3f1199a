package track

import (
	"math"
	"time"
)

// Projector converts geographic coordinates into horizontal scene
// coordinates. Implemented by coordinates.SceneProjector; abstracted here so
// normalization can be tested with a trivial projection.
type Projector interface {
	// Project maps latitude/longitude (decimal degrees) to scene X/Z.
	Project(lat, lon float64) (x, z float64)
}

// Normalizer converts raw service records into canonical positions. It is
// stateless; one instance can normalize any number of tracks.
type Normalizer struct {
	// Projector maps lat/lon to scene X/Z
	Projector Projector

	// AltitudeScale converts feet to scene Y units
	AltitudeScale float64

	// MinRenderAltitude floors scene Y so ground-level aircraft stay visible
	// above the terrain plane (typically 1.0 scene unit)
	MinRenderAltitude float64
}

// Normalize converts one raw record. The second return is false when the
// record is invalid: latitude or longitude missing, or the projected
// coordinates or scaled altitude come out non-finite. Invalid records are
// dropped, not errors; bad per-record data never aborts a load.
func (n Normalizer) Normalize(raw RawPosition, capture time.Time) (Position, bool) {
	lat, lon, ok := raw.LatLon()
	if !ok {
		return Position{}, false
	}

	x, z := n.Projector.Project(lat, lon)
	if !isFinite(x) || !isFinite(z) {
		return Position{}, false
	}

	altFt, _ := raw.AltitudeFeet()
	y := altFt * n.AltitudeScale
	if !isFinite(y) {
		return Position{}, false
	}
	if y < n.MinRenderAltitude {
		y = n.MinRenderAltitude
	}

	return Position{
		X:                x,
		Y:                y,
		Z:                z,
		AltitudeFeet:     altFt,
		GroundSpeedKnots: raw.GroundSpeedKnots(),
		TimestampMs:      raw.TimestampMs(capture),
	}, true
}

// NormalizeAll converts a raw sequence, dropping invalid records and
// preserving the order of the survivors.
func (n Normalizer) NormalizeAll(raws []RawPosition, capture time.Time) []Position {
	out := make([]Position, 0, len(raws))
	for _, raw := range raws {
		if p, ok := n.Normalize(raw, capture); ok {
			out = append(out, p)
		}
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
