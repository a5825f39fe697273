// Package geo provides coordinate helpers for the nearby search.
//
// The store keeps plain latitude/longitude columns; candidate rows are
// narrowed with an arithmetic bounding box in SQL and the exact great-circle
// distance is computed here.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for distance calculations.
const EarthRadiusMeters = 6371000.0

// Radius bounds for the nearby search, in meters.
const (
	MinRadiusMeters     = 100
	MaxRadiusMeters     = 5000
	DefaultRadiusMeters = 500
)

// ClampRadius forces a requested radius into the allowed range.
// Zero (unset) becomes the default.
func ClampRadius(r float64) float64 {
	if r == 0 {
		return DefaultRadiusMeters
	}
	if r < MinRadiusMeters {
		return MinRadiusMeters
	}
	if r > MaxRadiusMeters {
		return MaxRadiusMeters
	}
	return r
}

// ValidLatitude reports whether lat is a usable WGS 84 latitude.
func ValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lng is a usable WGS 84 longitude.
func ValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BoundingBox returns the lat/lng window that contains every point within
// radiusMeters of the center. The window over-approximates near the poles,
// which only means a few extra candidates for the exact distance check.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoxAround computes the bounding box for a center point and radius.
func BoxAround(lat, lng, radiusMeters float64) BoundingBox {
	dLat := radiusMeters / EarthRadiusMeters * 180 / math.Pi
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 1e-6 {
		cos = 1e-6
	}
	dLng := dLat / cos

	return BoundingBox{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
		MinLng: math.Max(lng-dLng, -180),
		MaxLng: math.Min(lng+dLng, 180),
	}
}
