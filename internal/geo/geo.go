// Package geo provides great-circle distance math and coordinate validation
// for radius-based recipient selection.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by the spherical
// approximation. The store-side SQL distance uses the same constant so both
// paths agree on who is in range.
const EarthRadiusKm = 6371.0

// Distance returns the haversine great-circle distance in kilometers
// between two coordinate pairs.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// WithinRadius reports whether the point (lat2, lon2) lies within radiusKm
// of the center (lat1, lon1). The boundary is inclusive.
func WithinRadius(lat1, lon1, lat2, lon2, radiusKm float64) bool {
	return Distance(lat1, lon1, lat2, lon2) <= radiusKm
}

// ValidateCoordinates rejects non-finite or out-of-range coordinates.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}
	return nil
}

// ValidateRadius rejects non-positive or non-finite radii. A zero or
// negative radius is a caller error, never silently clamped.
func ValidateRadius(radiusKm float64) error {
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm <= 0 {
		return fmt.Errorf("radius %v must be positive", radiusKm)
	}
	return nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
