// Package coordinates holds the geographic types and conversions the
// tracklapse pipeline uses: WGS84 positions, great-circle range and bearing
// for observer-relative displays, and the flat scene projection the
// timelapse renders into.
package coordinates

import "math"

const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's mean radius (WGS84)
	EarthRadiusKm = 6371.0

	// KmPerNauticalMile converts kilometers to nautical miles
	KmPerNauticalMile = 1.852

	// NauticalMilesPerDegree is the arc length of one degree of latitude
	NauticalMilesPerDegree = 60.0
)

// Geographic is a position on Earth's surface in the WGS84 coordinate
// system (same as GPS and the ADS-B position reports).
type Geographic struct {
	// Latitude in decimal degrees, positive north
	Latitude float64

	// Longitude in decimal degrees, positive east
	Longitude float64

	// Altitude in meters above mean sea level
	Altitude float64
}

// Bearing returns the initial great-circle bearing from one point to
// another in degrees: 0/360 north, 90 east, 180 south, 270 west.
func Bearing(from, to Geographic) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearing := math.Atan2(y, x) * RadiansToDegrees

	if bearing < 0 {
		bearing += 360
	}
	return bearing
}

// DistanceNauticalMiles returns the great-circle distance between two
// points (Haversine formula) in nautical miles.
func DistanceNauticalMiles(from, to Geographic) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	dLat := lat2 - lat1
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c / KmPerNauticalMile
}
