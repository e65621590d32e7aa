package geospatial

import (
	"github.com/paulmach/orb"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// WindowHalfSpan is half the side of the visible window, in degrees. The
// window is the same size at every zoom level.
const WindowHalfSpan = 0.1

const windowSpan = 2 * WindowHalfSpan

// Project maps p onto the viewport centred on center. X grows eastwards and Y
// grows southwards, both in percent of the viewport.
func Project(p, center domain.GeoPoint) domain.ProjectedPoint {
	return domain.ProjectedPoint{
		X: ((p.Lng - (center.Lng - WindowHalfSpan)) / windowSpan) * 100,
		Y: ((center.Lat + WindowHalfSpan - p.Lat) / windowSpan) * 100,
	}
}

// edgeTolerance absorbs float rounding in Project, so a coordinate lying
// exactly on a window edge still lands inside [0, 100].
const edgeTolerance = 1e-9

// Visible reports whether pt lies inside the viewport. Both edges are
// included. NaN coordinates are never visible.
func Visible(pt domain.ProjectedPoint) bool {
	return pt.X >= -edgeTolerance && pt.X <= 100+edgeTolerance &&
		pt.Y >= -edgeTolerance && pt.Y <= 100+edgeTolerance
}

// ProjectVisible projects p and reports whether it should be drawn.
func ProjectVisible(p, center domain.GeoPoint) (domain.ProjectedPoint, bool) {
	pt := Project(p, center)
	return pt, Visible(pt)
}

// Window returns the geographic rectangle shown around center.
func Window(center domain.GeoPoint) orb.Bound {
	return orb.Bound{
		Min: orb.Point{center.Lng - WindowHalfSpan, center.Lat - WindowHalfSpan},
		Max: orb.Point{center.Lng + WindowHalfSpan, center.Lat + WindowHalfSpan},
	}
}

// WindowBounds is Window expressed as domain bounds, for repository queries.
func WindowBounds(center domain.GeoPoint) domain.Bounds {
	w := Window(center)
	return domain.Bounds{
		MinLat: w.Min.Lat(),
		MinLng: w.Min.Lon(),
		MaxLat: w.Max.Lat(),
		MaxLng: w.Max.Lon(),
	}
}

// ToOrb converts a domain point to an orb point (lon, lat order).
func ToOrb(p domain.GeoPoint) orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FromOrb converts an orb point to a domain point.
func FromOrb(p orb.Point) domain.GeoPoint {
	return domain.GeoPoint{Lat: p.Lat(), Lng: p.Lon()}
}
