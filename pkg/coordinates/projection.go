package coordinates

import "math"

// SceneProjector maps geographic coordinates into the flat scene used by the
// viewers: a local tangent plane centered on the observer's home location.
// X grows eastward, Z grows southward (so north is -Z, matching a top-down
// scene where the camera looks down the Y axis).
//
// An equirectangular projection with the latitude-dependent longitude scale
// is accurate to well under a scene unit at the ranges a single receiver
// covers (a few hundred nautical miles).
type SceneProjector struct {
	home Geographic

	// unitsPerNM converts nautical miles to scene units
	unitsPerNM float64

	// cosHomeLat is precomputed for the longitude scale
	cosHomeLat float64
}

// NewSceneProjector creates a projector centered on home.
// unitsPerNM sets the scene scale (scene units per nautical mile).
func NewSceneProjector(home Geographic, unitsPerNM float64) *SceneProjector {
	return &SceneProjector{
		home:       home,
		unitsPerNM: unitsPerNM,
		cosHomeLat: math.Cos(home.Latitude * DegreesToRadians),
	}
}

// Project maps latitude/longitude to scene X/Z. Non-numeric input propagates
// as non-finite output, which the normalizer drops.
func (p *SceneProjector) Project(lat, lon float64) (x, z float64) {
	x = (lon - p.home.Longitude) * NauticalMilesPerDegree * p.cosHomeLat * p.unitsPerNM
	z = -(lat - p.home.Latitude) * NauticalMilesPerDegree * p.unitsPerNM
	return x, z
}

// Home returns the projection center.
func (p *SceneProjector) Home() Geographic {
	return p.home
}
