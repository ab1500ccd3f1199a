package track

// PositionAt estimates where the aircraft was at the given timestamp by
// linear interpolation in scene space between the bracketing samples.
//
// Positions are scanned explicitly because the stored order is the order
// received, which is not guaranteed to be sorted by time. Returns false when
// the timestamp is outside the track's recorded span or the track is empty.
func (t *Track) PositionAt(timestampMs int64) (Position, bool) {
	if len(t.Positions) == 0 {
		return Position{}, false
	}

	// Find the latest sample at or before the target and the earliest
	// sample at or after it.
	var before, after *Position
	for i := range t.Positions {
		p := &t.Positions[i]
		if p.TimestampMs <= timestampMs {
			if before == nil || p.TimestampMs > before.TimestampMs {
				before = p
			}
		}
		if p.TimestampMs >= timestampMs {
			if after == nil || p.TimestampMs < after.TimestampMs {
				after = p
			}
		}
	}
	if before == nil || after == nil {
		return Position{}, false
	}
	if before.TimestampMs == after.TimestampMs {
		return *before, true
	}

	frac := float64(timestampMs-before.TimestampMs) /
		float64(after.TimestampMs-before.TimestampMs)

	return Position{
		X:                lerp(before.X, after.X, frac),
		Y:                lerp(before.Y, after.Y, frac),
		Z:                lerp(before.Z, after.Z, frac),
		AltitudeFeet:     lerp(before.AltitudeFeet, after.AltitudeFeet, frac),
		GroundSpeedKnots: lerp(before.GroundSpeedKnots, after.GroundSpeedKnots, frac),
		TimestampMs:      timestampMs,
	}, true
}

func lerp(a, b, frac float64) float64 {
	return a + (b-a)*frac
}
