package track

import "testing"

func TestPositionAt(t *testing.T) {
	tr := &Track{
		ID: "a1b2c3",
		Positions: []Position{
			{X: 0, Y: 10, Z: 0, AltitudeFeet: 1000, TimestampMs: 0},
			{X: 100, Y: 20, Z: 50, AltitudeFeet: 2000, TimestampMs: 10_000},
		},
	}

	t.Run("Midpoint", func(t *testing.T) {
		p, ok := tr.PositionAt(5_000)
		if !ok {
			t.Fatal("Expected a position")
		}
		if p.X != 50 || p.Y != 15 || p.Z != 25 {
			t.Errorf("Expected (50, 15, 25), got (%v, %v, %v)", p.X, p.Y, p.Z)
		}
		if p.AltitudeFeet != 1500 {
			t.Errorf("Expected altitude 1500, got %v", p.AltitudeFeet)
		}
	})

	t.Run("Exact sample", func(t *testing.T) {
		p, ok := tr.PositionAt(10_000)
		if !ok || p.X != 100 {
			t.Errorf("Expected exact sample, got ok=%v p=%+v", ok, p)
		}
	})

	t.Run("Before span", func(t *testing.T) {
		if _, ok := tr.PositionAt(-1); ok {
			t.Error("Expected no position before the recorded span")
		}
	})

	t.Run("After span", func(t *testing.T) {
		if _, ok := tr.PositionAt(10_001); ok {
			t.Error("Expected no position after the recorded span")
		}
	})
}

func TestPositionAtUnsortedInput(t *testing.T) {
	// Samples arrive out of order; bracketing must still pick the nearest
	// pair by timestamp, not by slice position.
	tr := &Track{
		Positions: []Position{
			{X: 100, TimestampMs: 20_000},
			{X: 0, TimestampMs: 0},
			{X: 50, TimestampMs: 10_000},
		},
	}
	p, ok := tr.PositionAt(15_000)
	if !ok {
		t.Fatal("Expected a position")
	}
	if p.X != 75 {
		t.Errorf("Expected X 75 (between the 10s and 20s samples), got %v", p.X)
	}
}

func TestTrackTimestampBounds(t *testing.T) {
	tr := &Track{
		Positions: []Position{
			{TimestampMs: 5_000},
			{TimestampMs: 1_000},
			{TimestampMs: 9_000},
		},
	}

	first, ok := tr.FirstTimestampMs()
	if !ok || first != 1_000 {
		t.Errorf("Expected first 1000, got %d (ok=%v)", first, ok)
	}
	last, ok := tr.LastTimestampMs()
	if !ok || last != 9_000 {
		t.Errorf("Expected last 9000, got %d (ok=%v)", last, ok)
	}

	empty := &Track{}
	if _, ok := empty.FirstTimestampMs(); ok {
		t.Error("Expected no bounds for empty track")
	}
}
