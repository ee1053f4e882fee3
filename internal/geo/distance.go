// Package geo computes great-circle distances between coordinates.
package geo

import (
	"fmt"
	"math"

	"github.com/zatekoja/labbook/internal/domain/entities"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// UnknownDistance is displayed when either coordinate is absent.
const UnknownDistance = "unknown"

// Distance returns the haversine distance between a and b in kilometers.
// The atan2 form keeps identical points at exactly zero.
func Distance(a, b entities.Coordinate) float64 {
	if a == b {
		return 0
	}
	lat1 := degreesToRadians(a.Latitude)
	lat2 := degreesToRadians(b.Latitude)
	dLat := degreesToRadians(b.Latitude - a.Latitude)
	dLon := degreesToRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// DistanceBetween is Distance for optional coordinates; ok is false when either is nil.
func DistanceBetween(a, b *entities.Coordinate) (km float64, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	return Distance(*a, *b), true
}

// FormatDistance renders km with one decimal, e.g. "3.2 km".
func FormatDistance(km *float64) string {
	if km == nil || math.IsNaN(*km) {
		return UnknownDistance
	}
	return fmt.Sprintf("%.1f km", *km)
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
