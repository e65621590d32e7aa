package usecases_test

import (
	"errors"
	"math"
	"testing"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/usecases"
)

func fixtureEntities() []domain.GeoEntity {
	return []domain.GeoEntity{
		{ID: "1", Location: domain.GeoPoint{Lat: 28.6562, Lng: 77.2410}, Kind: domain.KindSafeZone, Title: "Red Fort Safe Zone", Status: domain.StatusActive},
		{ID: "2", Location: domain.GeoPoint{Lat: 28.6129, Lng: 77.2295}, Kind: domain.KindTouristGroup, Title: "Tourist Group Alpha", Status: domain.StatusActive},
		{ID: "3", Location: domain.GeoPoint{Lat: 28.6304, Lng: 77.2177}, Kind: domain.KindAlert, Title: "Traffic Congestion Alert", Status: domain.StatusWarning},
		{ID: "far", Location: domain.GeoPoint{Lat: 28.6139, Lng: 77.3190}, Kind: domain.KindAlert, Title: "Outside"},
	}
}

func intPtr(v int) *int { return &v }

func TestMapController_Defaults(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{}, nil)
	st := m.State()

	if st.Center != domain.DefaultCenter {
		t.Errorf("expected default center, got %v", st.Center)
	}
	if st.Zoom != domain.DefaultZoom {
		t.Errorf("expected zoom %d, got %d", domain.DefaultZoom, st.Zoom)
	}
	if st.Layer != domain.LayerStandard {
		t.Errorf("expected standard layer, got %s", st.Layer)
	}
	if st.SelectedEntityID != "" {
		t.Errorf("expected no selection, got %q", st.SelectedEntityID)
	}
	if !m.View().ShowControls {
		t.Error("controls should be shown by default")
	}
}

func TestMapController_ConfigZoomClamped(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{Zoom: intPtr(40)}, nil)
	if z := m.State().Zoom; z != domain.MaxZoom {
		t.Errorf("expected zoom clamped to %d, got %d", domain.MaxZoom, z)
	}
}

func TestMapController_ZoomInSaturates(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{Zoom: intPtr(17)}, nil)

	if z := m.ZoomIn().Zoom; z != 18 {
		t.Fatalf("expected 18, got %d", z)
	}
	for i := 0; i < 5; i++ {
		if z := m.ZoomIn().Zoom; z != 18 {
			t.Fatalf("expected zoom to stay at 18, got %d", z)
		}
	}
}

func TestMapController_ZoomOutSaturates(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{Zoom: intPtr(4)}, nil)

	if z := m.ZoomOut().Zoom; z != 3 {
		t.Fatalf("expected 3, got %d", z)
	}
	for i := 0; i < 5; i++ {
		if z := m.ZoomOut().Zoom; z != 3 {
			t.Fatalf("expected zoom to stay at 3, got %d", z)
		}
	}
}

func TestMapController_ResetRestoresOrigin(t *testing.T) {
	center := domain.GeoPoint{Lat: 28.65, Lng: 77.23}
	m := usecases.NewMapController("s1", domain.MapConfig{Center: &center, Zoom: intPtr(9)}, fixtureEntities())

	m.ZoomIn()
	m.Pan(0.013, -0.027)
	m.ZoomIn()
	m.ZoomOut()
	m.Pan(-1.5, 2.25)
	if _, err := m.SelectEntity("2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.SetLayer(domain.LayerTerrain); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := m.ResetView()
	if st.Center != center {
		t.Errorf("expected center %v, got %v", center, st.Center)
	}
	if st.Zoom != 9 {
		t.Errorf("expected zoom 9, got %d", st.Zoom)
	}
	if st.SelectedEntityID != "2" {
		t.Errorf("selection should survive reset, got %q", st.SelectedEntityID)
	}
	if st.Layer != domain.LayerTerrain {
		t.Errorf("layer should survive reset, got %s", st.Layer)
	}

	if again := m.ResetView(); again != st {
		t.Errorf("reset is not idempotent: %+v vs %+v", again, st)
	}
}

func TestMapController_SelectionExclusive(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{}, fixtureEntities())

	if _, err := m.SelectEntity("1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.SelectEntity("2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var selected []string
	for _, mk := range m.View().Markers {
		if mk.Selected {
			selected = append(selected, mk.Entity.ID)
		}
	}
	if len(selected) != 1 || selected[0] != "2" {
		t.Errorf("expected only entity 2 selected, got %v", selected)
	}

	m.Deselect()
	view := m.View()
	for _, mk := range view.Markers {
		if mk.Selected {
			t.Errorf("entity %s still selected after deselect", mk.Entity.ID)
		}
	}
	if view.Selected != nil {
		t.Errorf("expected no detail after deselect, got %+v", view.Selected)
	}
}

func TestMapController_SelectUnknown(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{}, fixtureEntities())
	if _, err := m.SelectEntity("1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, err := m.SelectEntity("nope")
	if !errors.Is(err, usecases.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
	if st.SelectedEntityID != "1" {
		t.Errorf("state should be unchanged, got selection %q", st.SelectedEntityID)
	}
}

func TestMapController_SetLayer(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{}, nil)

	st, err := m.SetLayer(domain.LayerSatellite)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Layer != domain.LayerSatellite {
		t.Errorf("expected satellite, got %s", st.Layer)
	}

	if _, err := m.SetLayer("hybrid"); !errors.Is(err, usecases.ErrInvalidLayer) {
		t.Errorf("expected ErrInvalidLayer, got %v", err)
	}
	if l := m.State().Layer; l != domain.LayerSatellite {
		t.Errorf("invalid layer changed state to %s", l)
	}
}

func TestMapController_ViewCulls(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{}, fixtureEntities())
	view := m.View()

	if len(view.Markers) != 3 {
		t.Fatalf("expected 3 visible markers, got %d", len(view.Markers))
	}
	if view.Culled != 1 {
		t.Errorf("expected 1 culled entity, got %d", view.Culled)
	}
	for _, mk := range view.Markers {
		if mk.Entity.ID == "far" {
			t.Error("entity outside the window was drawn")
		}
		if mk.Entity.ID == "3" && !mk.Pulse {
			t.Error("warning entity should pulse")
		}
		if mk.Entity.ID == "1" && mk.Style.Icon != "shield" {
			t.Errorf("expected shield icon for safe zone, got %s", mk.Style.Icon)
		}
	}
	if len(view.Legend) != 4 {
		t.Errorf("expected 4 legend entries, got %d", len(view.Legend))
	}
}

func TestMapController_PanMovesWindow(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{}, fixtureEntities())
	m.Pan(0, 0.11)

	for _, mk := range m.View().Markers {
		if mk.Entity.ID == "far" {
			return
		}
	}
	t.Error("expected entity to come into view after panning east")
}

func TestMapController_SelectedCulledKeepsDetail(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{}, fixtureEntities())
	if _, err := m.SelectEntity("far"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	view := m.View()
	if view.Selected == nil || view.Selected.ID != "far" {
		t.Fatalf("expected detail for culled selection, got %+v", view.Selected)
	}
	if view.Selected.Coordinates != "28.6139, 77.3190" {
		t.Errorf("unexpected coordinates %q", view.Selected.Coordinates)
	}
}

func TestMapController_NaNNeverVisible(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{}, []domain.GeoEntity{
		{ID: "nan", Location: domain.GeoPoint{Lat: math.NaN(), Lng: 77.2}},
	})
	view := m.View()
	if len(view.Markers) != 0 || view.Culled != 1 {
		t.Errorf("expected NaN entity culled, got %d markers / %d culled", len(view.Markers), view.Culled)
	}
}

func TestMapController_DuplicateIDsFirstWins(t *testing.T) {
	entities := append(fixtureEntities(), domain.GeoEntity{
		ID: "1", Location: domain.GeoPoint{Lat: 28.62, Lng: 77.21}, Kind: domain.KindSafeZone, Title: "Seed copy",
	})
	m := usecases.NewMapController("s1", domain.MapConfig{}, entities)
	if _, err := m.SelectEntity("1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view := m.View()
	if view.Selected.Title != "Red Fort Safe Zone" {
		t.Errorf("expected first entity to win, got %q", view.Selected.Title)
	}
	count := 0
	for _, mk := range view.Markers {
		if mk.Entity.ID == "1" {
			count++
		}
		if mk.Selected && mk.Entity.Title != "Red Fort Safe Zone" {
			t.Errorf("duplicate marked selected: %q", mk.Entity.Title)
		}
	}
	if count != 2 {
		t.Errorf("expected both entities with id 1 drawn, got %d", count)
	}
}

func TestMapController_SelectionListener(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{}, fixtureEntities())

	var changes []domain.SelectionChange
	m.OnSelectionChange(func(c domain.SelectionChange) { changes = append(changes, c) })

	m.SelectEntity("1")
	m.SelectEntity("1")
	m.SelectEntity("2")
	m.Deselect()
	m.Deselect()

	want := []domain.SelectionChange{
		{SessionID: "s1", Previous: "", Current: "1"},
		{SessionID: "s1", Previous: "1", Current: "2"},
		{SessionID: "s1", Previous: "2", Current: ""},
	}
	if len(changes) != len(want) {
		t.Fatalf("expected %d notifications, got %d: %+v", len(want), len(changes), changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d: expected %+v, got %+v", i, want[i], changes[i])
		}
	}
}

func TestMapController_SetEntitiesDropsStaleSelection(t *testing.T) {
	m := usecases.NewMapController("s1", domain.MapConfig{}, fixtureEntities())
	m.SelectEntity("3")

	var got *domain.SelectionChange
	m.OnSelectionChange(func(c domain.SelectionChange) { got = &c })

	m.SetEntities(fixtureEntities()[:2])
	if id := m.State().SelectedEntityID; id != "" {
		t.Errorf("expected selection cleared, got %q", id)
	}
	if got == nil || got.Previous != "3" || got.Current != "" {
		t.Errorf("expected clear notification, got %+v", got)
	}
}
