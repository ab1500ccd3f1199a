package track

import "math"

// Smoother corrects single-sample altitude outliers: a reading that jumps
// away from both neighbors while the neighbors agree with each other is a
// transient sensor glitch, not real aircraft motion. Genuine rapid climbs
// and descents (consecutive consistent deltas) are left alone because the
// neighbors disagree across them.
//
// Smooth is a pure transform: output length and order match the input and
// no state is carried between calls.
type Smoother struct {
	// OutlierThresholdFeet is how far a sample must jump away from both
	// neighbors before it is treated as a glitch
	OutlierThresholdFeet float64

	// LowAltitudeFloorFeet triggers the aggressive low-altitude rule: a
	// reading below this floor between two neighbors above it is corrected
	// even when the jump is under the outlier threshold. Spurious ground
	// readings are common; a real dip below the floor and back within one
	// sample is not.
	LowAltitudeFloorFeet float64

	// AltitudeScale and MinRenderAltitude re-derive the scene Y coordinate
	// for corrected samples, matching the Normalizer that produced them
	AltitudeScale     float64
	MinRenderAltitude float64
}

// Smooth returns a corrected copy of positions. Endpoint samples are never
// touched; they only have one neighbor, so a glitch there is
// indistinguishable from real motion.
func (s Smoother) Smooth(positions []Position) []Position {
	out := make([]Position, len(positions))
	copy(out, positions)
	if len(positions) < 3 {
		return out
	}

	for i := 1; i < len(positions)-1; i++ {
		// Compare against the input values so one correction cannot
		// cascade into the next sample's decision.
		prev := positions[i-1].AltitudeFeet
		cur := positions[i].AltitudeFeet
		next := positions[i+1].AltitudeFeet

		if math.Abs(next-prev) > s.OutlierThresholdFeet {
			// Neighbors disagree: real climb or descent in progress
			continue
		}

		glitch := math.Abs(cur-prev) > s.OutlierThresholdFeet &&
			math.Abs(cur-next) > s.OutlierThresholdFeet
		lowNoise := cur < s.LowAltitudeFloorFeet &&
			prev >= s.LowAltitudeFloorFeet &&
			next >= s.LowAltitudeFloorFeet

		if !glitch && !lowNoise {
			continue
		}

		corrected := (prev + next) / 2
		out[i].AltitudeFeet = corrected
		y := corrected * s.AltitudeScale
		if y < s.MinRenderAltitude {
			y = s.MinRenderAltitude
		}
		out[i].Y = y
	}

	return out
}
