package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/pkg/geospatial"
	"github.com/samirrijal/safemap/internal/pkg/metrics"
	"github.com/samirrijal/safemap/internal/pkg/telemetry"
)

// ErrSessionNotFound is returned for operations on a map session that was
// never opened or has been closed.
var ErrSessionNotFound = errors.New("map session not found")

const entitiesCacheKey = "entities:all"

// MapServiceConfig tunes a MapService.
type MapServiceConfig struct {
	// Defaults apply to sessions opened without their own configuration.
	Defaults domain.MapConfig
	// EntityCacheTTL is how long the external entity list is cached, in
	// seconds. Zero disables caching.
	EntityCacheTTL int
	// IdleTimeout closes sessions nobody has touched for this long. Zero
	// keeps sessions until they are closed explicitly.
	IdleTimeout time.Duration
}

type mapSession struct {
	ctrl     *MapController
	lastSeen atomic.Int64 // unix nanos
}

func (m *mapSession) touch(now time.Time) {
	m.lastSeen.Store(now.UnixNano())
}

// MapService manages server-side map sessions. Each session owns one
// MapController.
type MapService struct {
	external  ports.EntityProvider
	seed      ports.EntityProvider
	cache     ports.CacheService
	publisher ports.EventPublisher
	logger    *slog.Logger
	cfg       MapServiceConfig

	mu       sync.RWMutex
	sessions map[string]*mapSession

	now func() time.Time
}

// NewMapService creates a new MapService. external, cache and publisher may be
// nil.
func NewMapService(
	external ports.EntityProvider,
	seed ports.EntityProvider,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	cfg MapServiceConfig,
	logger *slog.Logger,
) *MapService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MapService{
		external:  external,
		seed:      seed,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		sessions:  make(map[string]*mapSession),
		now:       time.Now,
	}
}

// Open creates a session. Unset fields of cfg fall back to the service
// defaults.
func (s *MapService) Open(ctx context.Context, cfg domain.MapConfig) (*domain.MapView, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanMapOpen)
	defer span.End()

	entities, err := s.loadEntities(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ctrl := NewMapController(id, s.mergeDefaults(cfg), entities)
	ctrl.OnSelectionChange(s.publishSelection)

	sess := &mapSession{ctrl: ctrl}
	sess.touch(s.now())

	s.mu.Lock()
	s.sessions[id] = sess
	metrics.MapSessionsOpen.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	span.SetAttributes(attribute.String("map.session", id), attribute.Int("map.entities", len(entities)))
	s.logger.Debug("map session opened", "session", id, "entities", len(entities))

	view := s.render(ctrl)
	return &view, nil
}

// Close releases a session.
func (s *MapService) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		metrics.MapSessionsOpen.Set(float64(len(s.sessions)))
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.ctrl.OnSelectionChange(nil)
	return nil
}

// ReapIdle closes every session idle for longer than the configured timeout
// and returns how many it closed.
func (s *MapService) ReapIdle() int {
	if s.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.cfg.IdleTimeout).UnixNano()

	var reaped []*mapSession
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.lastSeen.Load() < cutoff {
			delete(s.sessions, id)
			reaped = append(reaped, sess)
		}
	}
	if len(reaped) > 0 {
		metrics.MapSessionsOpen.Set(float64(len(s.sessions)))
	}
	s.mu.Unlock()

	for _, sess := range reaped {
		sess.ctrl.OnSelectionChange(nil)
	}
	if len(reaped) > 0 {
		s.logger.Debug("idle map sessions closed", "count", len(reaped))
	}
	return len(reaped)
}

// Sessions returns the number of open sessions.
func (s *MapService) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// View renders the current frame of a session.
func (s *MapService) View(id string) (*domain.MapView, error) {
	ctrl, err := s.session(id)
	if err != nil {
		return nil, err
	}
	view := s.render(ctrl)
	return &view, nil
}

// ZoomIn applies the zoom-in gesture and renders the result.
func (s *MapService) ZoomIn(id string) (*domain.MapView, error) {
	return s.gesture(id, "zoom_in", func(c *MapController) error { c.ZoomIn(); return nil })
}

// ZoomOut applies the zoom-out gesture and renders the result.
func (s *MapService) ZoomOut(id string) (*domain.MapView, error) {
	return s.gesture(id, "zoom_out", func(c *MapController) error { c.ZoomOut(); return nil })
}

// ResetView restores the session's configured center and zoom.
func (s *MapService) ResetView(id string) (*domain.MapView, error) {
	return s.gesture(id, "reset", func(c *MapController) error { c.ResetView(); return nil })
}

// Pan moves the session's center by the given offsets in degrees.
func (s *MapService) Pan(id string, dLat, dLng float64) (*domain.MapView, error) {
	return s.gesture(id, "pan", func(c *MapController) error { c.Pan(dLat, dLng); return nil })
}

// SetLayer switches the session's base layer.
func (s *MapService) SetLayer(id string, layer domain.Layer) (*domain.MapView, error) {
	return s.gesture(id, "layer", func(c *MapController) error {
		_, err := c.SetLayer(layer)
		return err
	})
}

// Select marks an entity as selected.
func (s *MapService) Select(id, entityID string) (*domain.MapView, error) {
	return s.gesture(id, "select", func(c *MapController) error {
		_, err := c.SelectEntity(entityID)
		return err
	})
}

// Deselect clears the session's selection.
func (s *MapService) Deselect(id string) (*domain.MapView, error) {
	return s.gesture(id, "deselect", func(c *MapController) error { c.Deselect(); return nil })
}

// GeoJSON exports the visible markers of a session as a feature collection.
func (s *MapService) GeoJSON(id string) (*geojson.FeatureCollection, error) {
	ctrl, err := s.session(id)
	if err != nil {
		return nil, err
	}
	view := ctrl.View()
	return geospatial.MarkersToFeatureCollection(view.Markers, view.Viewport.Center), nil
}

// ReloadEntities refreshes the entity set of every open session.
func (s *MapService) ReloadEntities(ctx context.Context) error {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, entitiesCacheKey)
	}
	entities, err := s.loadEntities(ctx)
	if err != nil {
		return err
	}

	s.mu.RLock()
	ctrls := make([]*MapController, 0, len(s.sessions))
	for _, sess := range s.sessions {
		ctrls = append(ctrls, sess.ctrl)
	}
	s.mu.RUnlock()

	for _, c := range ctrls {
		c.SetEntities(entities)
	}
	s.logger.Debug("map entities reloaded", "sessions", len(ctrls), "entities", len(entities))
	return nil
}

// RunReloader closes idle sessions and, when an external provider is set,
// reloads entities every interval until ctx is done. Idle sessions are
// closed first so they are not reloaded.
func (s *MapService) RunReloader(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReapIdle()
			if s.external == nil {
				continue
			}
			if err := s.ReloadEntities(ctx); err != nil {
				s.logger.Warn("reload map entities", "error", err)
			}
		}
	}
}

// session looks up a session and marks it as used.
func (s *MapService) session(id string) (*MapController, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch(s.now())
	return sess.ctrl, nil
}

func (s *MapService) gesture(id, name string, apply func(*MapController) error) (*domain.MapView, error) {
	_, span := telemetry.Tracer().Start(context.Background(), telemetry.SpanGestureApply)
	defer span.End()
	span.SetAttributes(attribute.String("map.session", id), attribute.String("map.gesture", name))

	ctrl, err := s.session(id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := apply(ctrl); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	metrics.MapGestures.WithLabelValues(name).Inc()
	view := s.render(ctrl)
	return &view, nil
}

func (s *MapService) render(ctrl *MapController) domain.MapView {
	view := ctrl.View()
	metrics.MapMarkersVisible.Observe(float64(len(view.Markers)))
	metrics.MapMarkersCulled.Add(float64(view.Culled))
	return view
}

func (s *MapService) mergeDefaults(cfg domain.MapConfig) domain.MapConfig {
	if cfg.Center == nil {
		cfg.Center = s.cfg.Defaults.Center
	}
	if cfg.Zoom == nil {
		cfg.Zoom = s.cfg.Defaults.Zoom
	}
	if cfg.ShowControls == nil {
		cfg.ShowControls = s.cfg.Defaults.ShowControls
	}
	return cfg
}

// loadEntities returns the external entities followed by the seed set. Ids
// are not de-duplicated across the two.
func (s *MapService) loadEntities(ctx context.Context) ([]domain.GeoEntity, error) {
	external := s.externalEntities(ctx)

	var seed []domain.GeoEntity
	if s.seed != nil {
		var err error
		seed, err = s.seed.Entities(ctx)
		if err != nil {
			return nil, fmt.Errorf("load seed entities: %w", err)
		}
	}

	all := make([]domain.GeoEntity, 0, len(external)+len(seed))
	all = append(all, external...)
	return append(all, seed...), nil
}

// externalEntities reads the external provider through the cache. A failing
// provider yields no external entities so maps still open with the seed set.
func (s *MapService) externalEntities(ctx context.Context) []domain.GeoEntity {
	if s.external == nil {
		return nil
	}

	if s.cache != nil && s.cfg.EntityCacheTTL > 0 {
		if data, err := s.cache.Get(ctx, entitiesCacheKey); err == nil {
			var entities []domain.GeoEntity
			if err := json.Unmarshal(data, &entities); err == nil {
				metrics.CacheHits.WithLabelValues("entities").Inc()
				return entities
			}
		}
		metrics.CacheMisses.WithLabelValues("entities").Inc()
	}

	entities, err := s.external.Entities(ctx)
	if err != nil {
		s.logger.Warn("external entities unavailable, using seed set only", "error", err)
		return nil
	}

	if s.cache != nil && s.cfg.EntityCacheTTL > 0 {
		if data, err := json.Marshal(entities); err == nil {
			_ = s.cache.Set(ctx, entitiesCacheKey, data, s.cfg.EntityCacheTTL)
		}
	}
	return entities
}

// publishSelection forwards selection changes to the broker. It runs outside
// any request, so it uses its own bounded context.
func (s *MapService) publishSelection(change domain.SelectionChange) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.publisher.PublishSelectionChanged(ctx, change); err != nil {
		s.logger.Warn("publish selection change", "session", change.SessionID, "error", err)
	}
}
