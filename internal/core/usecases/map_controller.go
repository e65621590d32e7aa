package usecases

import (
	"errors"
	"fmt"
	"sync"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/pkg/geospatial"
)

// ErrEntityNotFound is returned when a gesture refers to an entity the map
// does not hold.
var ErrEntityNotFound = errors.New("entity not found")

// ErrInvalidLayer is returned for unknown base layers.
var ErrInvalidLayer = errors.New("invalid layer")

// SelectionListener is told about every change of the selected entity.
type SelectionListener func(change domain.SelectionChange)

// MapController owns the viewport of one map surface and applies gestures to
// it. Every transition is total and leaves the controller in a consistent
// state; views are re-derived from scratch on each call.
type MapController struct {
	mu       sync.Mutex
	id       string
	origin   domain.ResolvedMapConfig
	state    domain.ViewportState
	entities []domain.GeoEntity
	onSelect SelectionListener
}

// NewMapController creates a controller with the configured center and zoom,
// nothing selected and the standard layer.
func NewMapController(id string, cfg domain.MapConfig, entities []domain.GeoEntity) *MapController {
	origin := cfg.Resolve()
	return &MapController{
		id:     id,
		origin: origin,
		state: domain.ViewportState{
			Center: origin.Center,
			Zoom:   origin.Zoom,
			Layer:  domain.LayerStandard,
		},
		entities: entities,
	}
}

// ID returns the session identifier of the controller.
func (m *MapController) ID() string { return m.id }

// OnSelectionChange registers the selection listener. Pass nil to remove it.
func (m *MapController) OnSelectionChange(fn SelectionListener) {
	m.mu.Lock()
	m.onSelect = fn
	m.mu.Unlock()
}

// State returns a copy of the current viewport.
func (m *MapController) State() domain.ViewportState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ZoomIn raises the zoom by one, saturating at MaxZoom.
func (m *MapController) ZoomIn() domain.ViewportState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Zoom = min(m.state.Zoom+1, domain.MaxZoom)
	return m.state
}

// ZoomOut lowers the zoom by one, saturating at MinZoom.
func (m *MapController) ZoomOut() domain.ViewportState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Zoom = max(m.state.Zoom-1, domain.MinZoom)
	return m.state
}

// ResetView restores the configured center and zoom. Selection and layer are
// kept.
func (m *MapController) ResetView() domain.ViewportState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Center = m.origin.Center
	m.state.Zoom = m.origin.Zoom
	return m.state
}

// Pan moves the center by the given offsets in degrees.
func (m *MapController) Pan(dLat, dLng float64) domain.ViewportState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Center.Lat += dLat
	m.state.Center.Lng += dLng
	return m.state
}

// SetLayer switches the base layer.
func (m *MapController) SetLayer(l domain.Layer) (domain.ViewportState, error) {
	if _, err := domain.ParseLayer(string(l)); err != nil {
		return m.State(), fmt.Errorf("%w: %s", ErrInvalidLayer, l)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Layer = l
	return m.state, nil
}

// SelectEntity marks id as the single selected entity, replacing any earlier
// selection. Unknown ids leave the state untouched.
func (m *MapController) SelectEntity(id string) (domain.ViewportState, error) {
	m.mu.Lock()
	if _, ok := m.lookup(id); !ok {
		st := m.state
		m.mu.Unlock()
		return st, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	change := m.setSelection(id)
	st, fn := m.state, m.onSelect
	m.mu.Unlock()

	notify(fn, change)
	return st, nil
}

// Deselect clears the selection, as when the detail popup is closed.
func (m *MapController) Deselect() domain.ViewportState {
	m.mu.Lock()
	change := m.setSelection("")
	st, fn := m.state, m.onSelect
	m.mu.Unlock()

	notify(fn, change)
	return st
}

// SetEntities replaces the entity set. A selection whose entity is gone is
// cleared.
func (m *MapController) SetEntities(entities []domain.GeoEntity) {
	m.mu.Lock()
	m.entities = entities
	var change *domain.SelectionChange
	if sel := m.state.SelectedEntityID; sel != "" {
		if _, ok := m.lookup(sel); !ok {
			change = m.setSelection("")
		}
	}
	fn := m.onSelect
	m.mu.Unlock()

	notify(fn, change)
}

// View projects every entity against the current viewport and returns the
// markers that remain on screen.
func (m *MapController) View() domain.MapView {
	m.mu.Lock()
	defer m.mu.Unlock()

	view := domain.MapView{
		SessionID:    m.id,
		Viewport:     m.state,
		ShowControls: m.origin.ShowControls,
		Markers:      make([]domain.Marker, 0, len(m.entities)),
		Legend:       domain.Legend(),
	}

	// Ids may repeat across sources; only the first match counts as selected.
	selectedSeen := false
	for _, e := range m.entities {
		selected := !selectedSeen && e.ID != "" && e.ID == m.state.SelectedEntityID
		if selected {
			selectedSeen = true
		}
		pt, ok := geospatial.ProjectVisible(e.Location, m.state.Center)
		if !ok {
			view.Culled++
			continue
		}
		view.Markers = append(view.Markers, domain.Marker{
			Entity:   e,
			Point:    pt,
			Style:    domain.StyleFor(e.Kind),
			Pulse:    e.Status == domain.StatusWarning,
			Selected: selected,
		})
	}

	if sel, ok := m.lookup(m.state.SelectedEntityID); ok {
		detail := domain.DetailFor(sel)
		view.Selected = &detail
	}
	return view
}

// lookup finds the first entity with id. Callers hold mu.
func (m *MapController) lookup(id string) (domain.GeoEntity, bool) {
	if id == "" {
		return domain.GeoEntity{}, false
	}
	for _, e := range m.entities {
		if e.ID == id {
			return e, true
		}
	}
	return domain.GeoEntity{}, false
}

// setSelection updates the selection and describes the change, or returns
// nil when nothing changed. Callers hold mu.
func (m *MapController) setSelection(id string) *domain.SelectionChange {
	prev := m.state.SelectedEntityID
	if prev == id {
		return nil
	}
	m.state.SelectedEntityID = id
	return &domain.SelectionChange{SessionID: m.id, Previous: prev, Current: id}
}

func notify(fn SelectionListener, change *domain.SelectionChange) {
	if fn != nil && change != nil {
		fn(*change)
	}
}
