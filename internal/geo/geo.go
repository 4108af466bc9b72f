// Package geo provides geolocation utilities: great-circle distance for
// event discovery and geohash handling for coarse public venue display.
package geo

import "math"

// EarthRadiusMiles is the spherical-earth radius used for distance calculations.
const EarthRadiusMiles = 3959.0

// Point represents a geographic coordinate with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HaversineMiles computes the great-circle distance in miles between two
// points using the haversine formula on a spherical earth.
//
// The result is symmetric (HaversineMiles(a, b) == HaversineMiles(b, a))
// and zero for identical points.
func HaversineMiles(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180.0
	dLng := (b.Lng - a.Lng) * math.Pi / 180.0

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

// Valid reports whether the point is a plausible WGS84 coordinate.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
