package domain

import "fmt"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String formats the point to four decimal places, as shown in the detail panel.
func (p GeoPoint) String() string {
	return fmt.Sprintf("%.4f, %.4f", p.Lat, p.Lng)
}

// ProjectedPoint is a position inside the viewport, in percent of its width (X)
// and height (Y). Values outside [0,100] lie off-screen.
type ProjectedPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}
