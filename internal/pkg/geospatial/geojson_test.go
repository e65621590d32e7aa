package geospatial_test

import (
	"strings"
	"testing"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/pkg/geospatial"
)

func TestMarkersToFeatureCollection(t *testing.T) {
	e := domain.GeoEntity{
		ID:       "1",
		Location: domain.GeoPoint{Lat: 28.6562, Lng: 77.2410},
		Kind:     domain.KindSafeZone,
		Title:    "Red Fort Safe Zone",
		Status:   domain.StatusActive,
	}
	pt, _ := geospatial.ProjectVisible(e.Location, delhi)
	markers := []domain.Marker{{Entity: e, Point: pt, Style: domain.StyleFor(e.Kind), Selected: true}}

	fc := geospatial.MarkersToFeatureCollection(markers, delhi)
	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc.Features))
	}
	f := fc.Features[0]
	if f.Properties.MustString("kind", "") != "safe_zone" {
		t.Errorf("unexpected kind %v", f.Properties["kind"])
	}
	if !f.Properties.MustBool("selected", false) {
		t.Error("expected selected property")
	}
	if len(fc.BBox) != 4 || !approx(fc.BBox[0], delhi.Lng-0.1) || !approx(fc.BBox[3], delhi.Lat+0.1) {
		t.Errorf("unexpected bbox %v", fc.BBox)
	}
}

func TestEntitiesFromFeatureCollection(t *testing.T) {
	raw := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"g-1","geometry":{"type":"Point","coordinates":[77.2295,28.6129]},
		 "properties":{"kind":"tourist","title":"Tourist Group Beta","status":"active"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[77.2200,28.6328]},
		 "properties":{"id":"a-9","kind":"alert","title":"Road closure","description":"Parade","status":"warning"}}
	]}`
	fc, err := geojson.UnmarshalFeatureCollection([]byte(raw))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	entities, err := geospatial.EntitiesFromFeatureCollection(fc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(entities))
	}
	if entities[0].ID != "g-1" || entities[0].Kind != domain.KindTouristGroup {
		t.Errorf("unexpected first entity %+v", entities[0])
	}
	if entities[1].Location != (domain.GeoPoint{Lat: 28.6328, Lng: 77.2200}) {
		t.Errorf("coordinates swapped: %+v", entities[1].Location)
	}
	if entities[1].Status != domain.StatusWarning || entities[1].Description != "Parade" {
		t.Errorf("unexpected second entity %+v", entities[1])
	}
}

func TestEntitiesFromFeatureCollection_RejectsUnknownKind(t *testing.T) {
	raw := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"x","geometry":{"type":"Point","coordinates":[77.2,28.6]},
		 "properties":{"kind":"volcano","title":"Nope"}}
	]}`
	fc, err := geojson.UnmarshalFeatureCollection([]byte(raw))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := geospatial.EntitiesFromFeatureCollection(fc); err == nil || !strings.Contains(err.Error(), "volcano") {
		t.Errorf("expected unknown kind error, got %v", err)
	}
}
