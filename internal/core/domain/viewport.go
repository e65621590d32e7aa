package domain

import "fmt"

// Zoom bounds, inclusive.
const (
	MinZoom = 3
	MaxZoom = 18
)

// Defaults applied when a map is opened without configuration.
var (
	DefaultCenter       = GeoPoint{Lat: 28.6139, Lng: 77.2090} // Delhi
	DefaultZoom         = 11
	DefaultShowControls = true
)

// Layer is the base map style. It has no effect on projection.
type Layer string

const (
	LayerStandard  Layer = "standard"
	LayerSatellite Layer = "satellite"
	LayerTerrain   Layer = "terrain"
)

// ParseLayer validates a layer name.
func ParseLayer(s string) (Layer, error) {
	switch l := Layer(s); l {
	case LayerStandard, LayerSatellite, LayerTerrain:
		return l, nil
	}
	return "", fmt.Errorf("unknown layer %q", s)
}

// ViewportState is the mutable state of one map surface.
type ViewportState struct {
	Center           GeoPoint `json:"center"`
	Zoom             int      `json:"zoom"`
	SelectedEntityID string   `json:"selected_entity_id,omitempty"`
	Layer            Layer    `json:"layer"`
}

// MapConfig carries the optional inputs of a map surface.
type MapConfig struct {
	Center       *GeoPoint `json:"center,omitempty"`
	Zoom         *int      `json:"zoom,omitempty"`
	ShowControls *bool     `json:"show_controls,omitempty"`
}

// ResolvedMapConfig is a MapConfig with every default filled in.
type ResolvedMapConfig struct {
	Center       GeoPoint
	Zoom         int
	ShowControls bool
}

// Resolve fills defaults and clamps the zoom into [MinZoom, MaxZoom].
func (c MapConfig) Resolve() ResolvedMapConfig {
	r := ResolvedMapConfig{Center: DefaultCenter, Zoom: DefaultZoom, ShowControls: DefaultShowControls}
	if c.Center != nil {
		r.Center = *c.Center
	}
	if c.Zoom != nil {
		r.Zoom = ClampZoom(*c.Zoom)
	}
	if c.ShowControls != nil {
		r.ShowControls = *c.ShowControls
	}
	return r
}

// ClampZoom bounds z to the supported zoom range.
func ClampZoom(z int) int {
	return max(MinZoom, min(z, MaxZoom))
}

// MapView is everything a client needs to draw one frame of the map.
type MapView struct {
	SessionID    string        `json:"session_id"`
	Viewport     ViewportState `json:"viewport"`
	ShowControls bool          `json:"show_controls"`
	Markers      []Marker      `json:"markers"`
	Culled       int           `json:"culled"`
	Selected     *EntityDetail `json:"selected,omitempty"`
	Legend       []LegendEntry `json:"legend"`
}

// SelectionChange is emitted when the selected entity of a map changes.
type SelectionChange struct {
	SessionID string `json:"session_id"`
	Previous  string `json:"previous,omitempty"`
	Current   string `json:"current,omitempty"`
}
