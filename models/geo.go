package models

import "math"

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle distance between two points.
func DistanceKm(a, b GeoPoint) float64 {
	dLat := (b.Lat() - a.Lat()) * math.Pi / 180
	dLon := (b.Lng() - a.Lng()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat()*math.Pi/180)*math.Cos(b.Lat()*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// Candidate is a user returned by a proximity query together with its distance.
type Candidate struct {
	User           User
	DistanceMeters float64
}
