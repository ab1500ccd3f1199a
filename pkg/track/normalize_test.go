package track

import (
	"math"
	"testing"
	"time"
)

// flatProjector is a trivial lat/lon -> X/Z mapping for tests.
type flatProjector struct{}

func (flatProjector) Project(lat, lon float64) (float64, float64) {
	return lon, -lat
}

// nanProjector always produces a non-finite coordinate.
type nanProjector struct{}

func (nanProjector) Project(lat, lon float64) (float64, float64) {
	return math.NaN(), -lat
}

func floatPtr(f float64) *float64 { return &f }

func testNormalizer() Normalizer {
	return Normalizer{
		Projector:         flatProjector{},
		AltitudeScale:     0.01,
		MinRenderAltitude: 1.0,
	}
}

func TestNormalizeDropsInvalidRecords(t *testing.T) {
	n := testNormalizer()
	capture := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  RawPosition
	}{
		{"missing latitude", RawPosition{Lon: floatPtr(-90)}},
		{"missing longitude", RawPosition{Lat: floatPtr(45)}},
		{"empty record", RawPosition{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := n.Normalize(tt.raw, capture); ok {
				t.Errorf("Expected record to be dropped, got a position")
			}
		})
	}
}

func TestNormalizeDropsNonFiniteProjection(t *testing.T) {
	n := testNormalizer()
	n.Projector = nanProjector{}

	raw := RawPosition{Lat: floatPtr(45), Lon: floatPtr(-90), Alt: 5000.0}
	if _, ok := n.Normalize(raw, time.Time{}); ok {
		t.Error("Expected non-finite projection to drop the record")
	}
}

func TestNormalizeFieldAliases(t *testing.T) {
	n := testNormalizer()

	raw := RawPosition{
		Latitude:  floatPtr(45),
		Longitude: floatPtr(-90),
		Altitude:  20000.0,
		Speed:     floatPtr(410),
	}
	pos, ok := n.Normalize(raw, time.Time{})
	if !ok {
		t.Fatal("Expected aliased fields to normalize")
	}
	if pos.X != -90 || pos.Z != -45 {
		t.Errorf("Expected projected (-90, -45), got (%v, %v)", pos.X, pos.Z)
	}
	if pos.AltitudeFeet != 20000 {
		t.Errorf("Expected altitude 20000, got %v", pos.AltitudeFeet)
	}
	if pos.GroundSpeedKnots != 410 {
		t.Errorf("Expected speed 410, got %v", pos.GroundSpeedKnots)
	}
}

func TestNormalizeAltitudePrecedence(t *testing.T) {
	n := testNormalizer()

	// alt_baro must win over both generic aliases when present.
	raw := RawPosition{
		Lat:      floatPtr(45),
		Lon:      floatPtr(-90),
		AltBaro:  31000.0,
		Alt:      30000.0,
		Altitude: 29000.0,
	}
	pos, ok := n.Normalize(raw, time.Time{})
	if !ok {
		t.Fatal("Expected position")
	}
	if pos.AltitudeFeet != 31000 {
		t.Errorf("Expected alt_baro (31000) to win, got %v", pos.AltitudeFeet)
	}

	// With alt_baro absent, alt wins over altitude.
	raw.AltBaro = nil
	pos, _ = n.Normalize(raw, time.Time{})
	if pos.AltitudeFeet != 30000 {
		t.Errorf("Expected alt (30000) to win, got %v", pos.AltitudeFeet)
	}
}

func TestNormalizeGroundAltitude(t *testing.T) {
	n := testNormalizer()

	raw := RawPosition{Lat: floatPtr(45), Lon: floatPtr(-90), AltBaro: "ground"}
	pos, ok := n.Normalize(raw, time.Time{})
	if !ok {
		t.Fatal("Expected ground record to normalize")
	}
	if pos.AltitudeFeet != 0 {
		t.Errorf("Expected 0 ft for ground, got %v", pos.AltitudeFeet)
	}
	if pos.Y != 1.0 {
		t.Errorf("Expected Y floored at 1.0, got %v", pos.Y)
	}
}

func TestNormalizeVerticalFloor(t *testing.T) {
	n := testNormalizer()

	// 50 ft * 0.01 = 0.5 scene units, below the 1.0 floor.
	raw := RawPosition{Lat: floatPtr(45), Lon: floatPtr(-90), AltBaro: 50.0}
	pos, _ := n.Normalize(raw, time.Time{})
	if pos.Y != 1.0 {
		t.Errorf("Expected Y clamped to 1.0, got %v", pos.Y)
	}

	// 5000 ft * 0.01 = 50 units, above the floor.
	raw.AltBaro = 5000.0
	pos, _ = n.Normalize(raw, time.Time{})
	if pos.Y != 50.0 {
		t.Errorf("Expected Y 50.0, got %v", pos.Y)
	}
}

func TestNormalizeTimestampPrecedence(t *testing.T) {
	n := testNormalizer()
	capture := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pointTime := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	t.Run("Point time wins over capture", func(t *testing.T) {
		raw := RawPosition{
			Lat:  floatPtr(45),
			Lon:  floatPtr(-90),
			Time: pointTime.Format(time.RFC3339),
		}
		pos, _ := n.Normalize(raw, capture)
		if pos.TimestampMs != pointTime.UnixMilli() {
			t.Errorf("Expected point timestamp %d, got %d", pointTime.UnixMilli(), pos.TimestampMs)
		}
	})

	t.Run("Unix seconds accepted", func(t *testing.T) {
		raw := RawPosition{
			Lat:       floatPtr(45),
			Lon:       floatPtr(-90),
			Timestamp: float64(pointTime.Unix()),
		}
		pos, _ := n.Normalize(raw, capture)
		if pos.TimestampMs != pointTime.UnixMilli() {
			t.Errorf("Expected %d, got %d", pointTime.UnixMilli(), pos.TimestampMs)
		}
	})

	t.Run("Capture fallback", func(t *testing.T) {
		raw := RawPosition{Lat: floatPtr(45), Lon: floatPtr(-90)}
		pos, _ := n.Normalize(raw, capture)
		if pos.TimestampMs != capture.UnixMilli() {
			t.Errorf("Expected capture timestamp %d, got %d", capture.UnixMilli(), pos.TimestampMs)
		}
	})

	t.Run("Processing-time fallback", func(t *testing.T) {
		before := time.Now().UTC().UnixMilli()
		raw := RawPosition{Lat: floatPtr(45), Lon: floatPtr(-90)}
		pos, _ := n.Normalize(raw, time.Time{})
		after := time.Now().UTC().UnixMilli()
		if pos.TimestampMs < before || pos.TimestampMs > after {
			t.Errorf("Expected processing-time timestamp, got %d", pos.TimestampMs)
		}
	})
}

func TestNormalizeAllPreservesOrder(t *testing.T) {
	n := testNormalizer()

	raws := []RawPosition{
		{Lat: floatPtr(45.0), Lon: floatPtr(-90.0), AltBaro: 5000.0},
		{Lon: floatPtr(-90.1)}, // invalid, dropped
		{Lat: floatPtr(45.2), Lon: floatPtr(-90.2), AltBaro: 5200.0},
	}
	out := n.NormalizeAll(raws, time.Time{})
	if len(out) != 2 {
		t.Fatalf("Expected 2 positions, got %d", len(out))
	}
	if out[0].AltitudeFeet != 5000 || out[1].AltitudeFeet != 5200 {
		t.Errorf("Expected survivor order preserved, got %v then %v",
			out[0].AltitudeFeet, out[1].AltitudeFeet)
	}
}

func TestCanonicalID(t *testing.T) {
	if got := CanonicalID(" A1B2C3 "); got != "a1b2c3" {
		t.Errorf("Expected a1b2c3, got %q", got)
	}
}
