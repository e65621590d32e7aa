package geospatial

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// MarkersToFeatureCollection exports drawn markers as point features. The
// collection's bbox is the viewport window around center.
func MarkersToFeatureCollection(markers []domain.Marker, center domain.GeoPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.BBox = geojson.NewBBox(Window(center))

	for _, m := range markers {
		f := geojson.NewFeature(ToOrb(m.Entity.Location))
		f.ID = m.Entity.ID
		f.Properties["id"] = m.Entity.ID
		f.Properties["kind"] = string(m.Entity.Kind)
		f.Properties["title"] = m.Entity.Title
		if m.Entity.Description != "" {
			f.Properties["description"] = m.Entity.Description
		}
		if m.Entity.Status != "" {
			f.Properties["status"] = string(m.Entity.Status)
		}
		f.Properties["x"] = m.Point.X
		f.Properties["y"] = m.Point.Y
		f.Properties["icon"] = m.Style.Icon
		f.Properties["color"] = m.Style.Color
		f.Properties["pulse"] = m.Pulse
		f.Properties["selected"] = m.Selected
		fc.Append(f)
	}
	return fc
}

// EntitiesFromFeatureCollection reads point features as entities. Features
// need a point geometry, an id (feature id or "id" property), a valid "kind"
// and a "title".
func EntitiesFromFeatureCollection(fc *geojson.FeatureCollection) ([]domain.GeoEntity, error) {
	entities := make([]domain.GeoEntity, 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: expected Point geometry, got %T", i, f.Geometry)
		}

		id := f.Properties.MustString("id", "")
		if id == "" && f.ID != nil {
			id = fmt.Sprint(f.ID)
		}
		if id == "" {
			return nil, fmt.Errorf("feature %d: missing id", i)
		}

		kind, err := domain.ParseEntityKind(f.Properties.MustString("kind", ""))
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", id, err)
		}

		title := f.Properties.MustString("title", "")
		if title == "" {
			return nil, fmt.Errorf("feature %s: missing title", id)
		}

		entities = append(entities, domain.GeoEntity{
			ID:          id,
			Location:    FromOrb(pt),
			Kind:        kind,
			Title:       title,
			Description: f.Properties.MustString("description", ""),
			Status:      domain.EntityStatus(f.Properties.MustString("status", "")),
		})
	}
	return entities, nil
}
