package domain

import "fmt"

// EntityKind classifies a point of interest on the map.
type EntityKind string

const (
	KindTouristGroup   EntityKind = "tourist"
	KindSafeZone       EntityKind = "safe_zone"
	KindRestrictedZone EntityKind = "restricted_zone"
	KindAlert          EntityKind = "alert"
	KindPoliceStation  EntityKind = "police_station"
)

// ParseEntityKind validates a wire value against the closed set of kinds.
func ParseEntityKind(s string) (EntityKind, error) {
	switch k := EntityKind(s); k {
	case KindTouristGroup, KindSafeZone, KindRestrictedZone, KindAlert, KindPoliceStation:
		return k, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// EntityStatus is the optional operational status of an entity.
type EntityStatus string

const (
	StatusActive   EntityStatus = "active"
	StatusInactive EntityStatus = "inactive"
	StatusWarning  EntityStatus = "warning"
)

// GeoEntity is a point of interest: a tourist group, a zone, an alert or a
// police station. Entities are values and are never mutated after receipt.
type GeoEntity struct {
	ID          string       `json:"id"`
	Location    GeoPoint     `json:"location"`
	Kind        EntityKind   `json:"kind"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      EntityStatus `json:"status,omitempty"`
}

// MarkerStyle is the icon and palette used to draw an entity.
type MarkerStyle struct {
	Icon       string `json:"icon"`
	Color      string `json:"color"`
	Background string `json:"background"`
}

// StyleFor returns the legend style for a kind.
func StyleFor(k EntityKind) MarkerStyle {
	switch k {
	case KindTouristGroup:
		return MarkerStyle{Icon: "users", Color: "blue-600", Background: "blue-100"}
	case KindSafeZone:
		return MarkerStyle{Icon: "shield", Color: "green-600", Background: "green-100"}
	case KindRestrictedZone:
		return MarkerStyle{Icon: "alert-triangle", Color: "red-600", Background: "red-100"}
	case KindAlert:
		return MarkerStyle{Icon: "alert-triangle", Color: "yellow-600", Background: "yellow-100"}
	case KindPoliceStation:
		return MarkerStyle{Icon: "shield", Color: "blue-800", Background: "blue-200"}
	default:
		return MarkerStyle{Icon: "map-pin", Color: "gray-600", Background: "gray-100"}
	}
}

// StatusBadge is the label shown next to an entity's status.
type StatusBadge struct {
	Text    string `json:"text"`
	Variant string `json:"variant"` // default | destructive | secondary
}

// BadgeFor maps an entity status to its badge.
func BadgeFor(s EntityStatus) StatusBadge {
	switch s {
	case StatusActive:
		return StatusBadge{Text: "Active", Variant: "default"}
	case StatusWarning:
		return StatusBadge{Text: "Warning", Variant: "destructive"}
	case StatusInactive:
		return StatusBadge{Text: "Inactive", Variant: "secondary"}
	default:
		return StatusBadge{Text: "Unknown", Variant: "secondary"}
	}
}

// Marker is an entity that survived culling, ready to draw.
type Marker struct {
	Entity   GeoEntity      `json:"entity"`
	Point    ProjectedPoint `json:"point"`
	Style    MarkerStyle    `json:"style"`
	Pulse    bool           `json:"pulse"`
	Selected bool           `json:"selected"`
}

// EntityDetail is the read-only popup for the selected entity.
type EntityDetail struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Badge       StatusBadge `json:"badge"`
	Coordinates string      `json:"coordinates"`
}

// DetailFor builds the popup contents for an entity.
func DetailFor(e GeoEntity) EntityDetail {
	return EntityDetail{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Badge:       BadgeFor(e.Status),
		Coordinates: e.Location.String(),
	}
}

// LegendEntry is one row of the map legend.
type LegendEntry struct {
	Label string      `json:"label"`
	Style MarkerStyle `json:"style"`
}

// Legend lists the kinds shown in the map legend, in display order.
func Legend() []LegendEntry {
	return []LegendEntry{
		{Label: "Safe Zones", Style: StyleFor(KindSafeZone)},
		{Label: "Tourist Groups", Style: StyleFor(KindTouristGroup)},
		{Label: "Restricted Areas", Style: StyleFor(KindRestrictedZone)},
		{Label: "Active Alerts", Style: StyleFor(KindAlert)},
	}
}
