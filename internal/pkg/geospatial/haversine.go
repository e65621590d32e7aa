package geospatial

import (
	"math"

	"github.com/samirrijal/safemap/internal/core/domain"
)

const (
	earthRadiusM    = 6371000.0
	metersPerDegree = 111320.0
)

// Distance returns the great-circle distance in meters between two points.
func Distance(a, b domain.GeoPoint) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BoundsAround returns a box that contains every point within radius meters
// of p. It over-covers; callers filter with Distance.
func BoundsAround(p domain.GeoPoint, radius float64) domain.Bounds {
	latDelta := radius / metersPerDegree
	lngDelta := radius / (metersPerDegree * math.Max(math.Cos(toRad(p.Lat)), 1e-6))

	return domain.Bounds{
		MinLat: math.Max(p.Lat-latDelta, -90),
		MinLng: math.Max(p.Lng-lngDelta, -180),
		MaxLat: math.Min(p.Lat+latDelta, 90),
		MaxLng: math.Min(p.Lng+lngDelta, 180),
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
