package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/samirrijal/safemap/internal/adapters/simulation"
	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/usecases"
	"github.com/samirrijal/safemap/internal/pkg/metrics"
)

// --- Mock EntityProvider ---

type mockEntityProvider struct {
	calls      int
	entitiesFn func(ctx context.Context) ([]domain.GeoEntity, error)
}

func (m *mockEntityProvider) Entities(ctx context.Context) ([]domain.GeoEntity, error) {
	m.calls++
	if m.entitiesFn != nil {
		return m.entitiesFn(ctx)
	}
	return nil, nil
}

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu         sync.Mutex
	selections []domain.SelectionChange
	snapshots  int
}

func (m *mockPublisher) PublishSelectionChanged(ctx context.Context, change domain.SelectionChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selections = append(m.selections, change)
	return nil
}

func (m *mockPublisher) PublishSnapshot(ctx context.Context, snap *domain.MetricsSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots++
	return nil
}

func externalEntities() []domain.GeoEntity {
	return []domain.GeoEntity{
		{ID: "ext-1", Location: domain.GeoPoint{Lat: 28.62, Lng: 77.21}, Kind: domain.KindTouristGroup, Title: "Group Gamma", Status: domain.StatusActive},
		{ID: "1", Location: domain.GeoPoint{Lat: 28.60, Lng: 77.20}, Kind: domain.KindAlert, Title: "External alert", Status: domain.StatusWarning},
	}
}

func TestMapService_OpenMergesSources(t *testing.T) {
	ext := &mockEntityProvider{entitiesFn: func(ctx context.Context) ([]domain.GeoEntity, error) {
		return externalEntities(), nil
	}}
	svc := usecases.NewMapService(ext, simulation.NewSeedProvider(), nil, nil, usecases.MapServiceConfig{}, nil)

	view, err := svc.Open(context.Background(), domain.MapConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if len(view.Markers) != 7 {
		t.Fatalf("expected 7 markers (2 external + 5 seed), got %d", len(view.Markers))
	}
	if view.Markers[0].Entity.ID != "ext-1" {
		t.Errorf("external entities should come first, got %s", view.Markers[0].Entity.ID)
	}

	// Both entities with id "1" are kept; the external one wins selection.
	view, err = svc.Select(view.SessionID, "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Selected == nil || view.Selected.Title != "External alert" {
		t.Errorf("expected external entity selected, got %+v", view.Selected)
	}
}

func TestMapService_ExternalFailureFallsBackToSeed(t *testing.T) {
	ext := &mockEntityProvider{entitiesFn: func(ctx context.Context) ([]domain.GeoEntity, error) {
		return nil, errors.New("upstream down")
	}}
	svc := usecases.NewMapService(ext, simulation.NewSeedProvider(), nil, nil, usecases.MapServiceConfig{}, nil)

	view, err := svc.Open(context.Background(), domain.MapConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Markers) != 5 {
		t.Errorf("expected the 5 seed markers, got %d", len(view.Markers))
	}
}

func TestMapService_EntityCache(t *testing.T) {
	ext := &mockEntityProvider{entitiesFn: func(ctx context.Context) ([]domain.GeoEntity, error) {
		return externalEntities(), nil
	}}
	cache := newMockCache()
	svc := usecases.NewMapService(ext, nil, cache, nil, usecases.MapServiceConfig{EntityCacheTTL: 30}, nil)

	for i := 0; i < 3; i++ {
		if _, err := svc.Open(context.Background(), domain.MapConfig{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ext.calls != 1 {
		t.Errorf("expected provider to be called once, got %d", ext.calls)
	}

	if err := svc.ReloadEntities(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.calls != 2 {
		t.Errorf("reload should bypass the cache, got %d provider calls", ext.calls)
	}
}

func TestMapService_Gestures(t *testing.T) {
	svc := usecases.NewMapService(nil, simulation.NewSeedProvider(), nil, nil, usecases.MapServiceConfig{}, nil)
	view, _ := svc.Open(context.Background(), domain.MapConfig{})
	id := view.SessionID

	view, err := svc.ZoomIn(id)
	if err != nil || view.Viewport.Zoom != 12 {
		t.Fatalf("zoom in: view %+v, err %v", view.Viewport, err)
	}
	view, _ = svc.Pan(id, 0.5, 0.5)
	if len(view.Markers) != 0 || view.Culled != 5 {
		t.Errorf("expected every seed entity culled after panning away, got %d markers", len(view.Markers))
	}
	view, _ = svc.ResetView(id)
	if view.Viewport.Center != domain.DefaultCenter || view.Viewport.Zoom != domain.DefaultZoom {
		t.Errorf("reset did not restore defaults: %+v", view.Viewport)
	}
	if _, err := svc.SetLayer(id, "blueprint"); !errors.Is(err, usecases.ErrInvalidLayer) {
		t.Errorf("expected ErrInvalidLayer, got %v", err)
	}
	if _, err := svc.Select(id, "404"); !errors.Is(err, usecases.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestMapService_SessionDefaults(t *testing.T) {
	zoom := 14
	center := domain.GeoPoint{Lat: 28.65, Lng: 77.23}
	svc := usecases.NewMapService(nil, nil, nil, nil, usecases.MapServiceConfig{
		Defaults: domain.MapConfig{Center: &center, Zoom: &zoom},
	}, nil)

	view, _ := svc.Open(context.Background(), domain.MapConfig{})
	if view.Viewport.Center != center || view.Viewport.Zoom != 14 {
		t.Errorf("service defaults not applied: %+v", view.Viewport)
	}

	own := 5
	view, _ = svc.Open(context.Background(), domain.MapConfig{Zoom: &own})
	if view.Viewport.Zoom != 5 || view.Viewport.Center != center {
		t.Errorf("session config should override only what it sets: %+v", view.Viewport)
	}
}

func TestMapService_PublishesSelection(t *testing.T) {
	pub := &mockPublisher{}
	svc := usecases.NewMapService(nil, simulation.NewSeedProvider(), nil, pub, usecases.MapServiceConfig{}, nil)
	view, _ := svc.Open(context.Background(), domain.MapConfig{})

	svc.Select(view.SessionID, "2")
	svc.Deselect(view.SessionID)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.selections) != 2 {
		t.Fatalf("expected 2 published changes, got %d", len(pub.selections))
	}
	if pub.selections[0].Current != "2" || pub.selections[1].Previous != "2" || pub.selections[1].Current != "" {
		t.Errorf("unexpected changes %+v", pub.selections)
	}
	if pub.selections[0].SessionID != view.SessionID {
		t.Errorf("expected session %s, got %s", view.SessionID, pub.selections[0].SessionID)
	}
}

func TestMapService_Close(t *testing.T) {
	svc := usecases.NewMapService(nil, simulation.NewSeedProvider(), nil, nil, usecases.MapServiceConfig{}, nil)
	view, _ := svc.Open(context.Background(), domain.MapConfig{})

	if svc.Sessions() != 1 {
		t.Fatalf("expected 1 session, got %d", svc.Sessions())
	}
	if err := svc.Close(view.SessionID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.View(view.SessionID); !errors.Is(err, usecases.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := svc.Close(view.SessionID); !errors.Is(err, usecases.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second close, got %v", err)
	}
}

func TestMapService_GeoJSON(t *testing.T) {
	svc := usecases.NewMapService(nil, simulation.NewSeedProvider(), nil, nil, usecases.MapServiceConfig{}, nil)
	view, _ := svc.Open(context.Background(), domain.MapConfig{})

	fc, err := svc.GeoJSON(view.SessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fc.Features) != len(view.Markers) {
		t.Errorf("expected %d features, got %d", len(view.Markers), len(fc.Features))
	}
}

func TestMapService_ReloadClearsMissingSelection(t *testing.T) {
	current := externalEntities()
	ext := &mockEntityProvider{entitiesFn: func(ctx context.Context) ([]domain.GeoEntity, error) {
		return current, nil
	}}
	svc := usecases.NewMapService(ext, nil, nil, nil, usecases.MapServiceConfig{}, nil)
	view, _ := svc.Open(context.Background(), domain.MapConfig{})
	svc.Select(view.SessionID, "ext-1")

	current = current[1:]
	if err := svc.ReloadEntities(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	view, _ = svc.View(view.SessionID)
	if view.Viewport.SelectedEntityID != "" || view.Selected != nil {
		t.Errorf("expected selection cleared after reload, got %+v", view.Viewport)
	}
}

func TestMapService_ReapIdle(t *testing.T) {
	svc := usecases.NewMapService(nil, simulation.NewSeedProvider(), nil, nil, usecases.MapServiceConfig{
		IdleTimeout: 30 * time.Millisecond,
	}, nil)

	abandoned, _ := svc.Open(context.Background(), domain.MapConfig{})
	active, _ := svc.Open(context.Background(), domain.MapConfig{})

	time.Sleep(60 * time.Millisecond)
	if _, err := svc.ZoomIn(active.SessionID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := svc.ReapIdle(); n != 1 {
		t.Fatalf("expected 1 reaped session, got %d", n)
	}
	if svc.Sessions() != 1 {
		t.Errorf("expected 1 open session, got %d", svc.Sessions())
	}
	if _, err := svc.View(abandoned.SessionID); !errors.Is(err, usecases.ErrSessionNotFound) {
		t.Errorf("expected abandoned session to be gone, got %v", err)
	}
	if _, err := svc.View(active.SessionID); err != nil {
		t.Errorf("active session was reaped: %v", err)
	}
	if got := testutil.ToFloat64(metrics.MapSessionsOpen); got != 1 {
		t.Errorf("expected sessions gauge 1, got %v", got)
	}
}

func TestMapService_ReapIdleDisabled(t *testing.T) {
	svc := usecases.NewMapService(nil, simulation.NewSeedProvider(), nil, nil, usecases.MapServiceConfig{}, nil)
	svc.Open(context.Background(), domain.MapConfig{})

	time.Sleep(5 * time.Millisecond)
	if n := svc.ReapIdle(); n != 0 {
		t.Errorf("expected no reaping without an idle timeout, got %d", n)
	}
	if svc.Sessions() != 1 {
		t.Errorf("expected session to stay open, got %d", svc.Sessions())
	}
}

func TestMapService_ReloaderReapsAbandonedSessions(t *testing.T) {
	svc := usecases.NewMapService(nil, simulation.NewSeedProvider(), nil, nil, usecases.MapServiceConfig{
		IdleTimeout: 10 * time.Millisecond,
	}, nil)
	for i := 0; i < 100; i++ {
		if _, err := svc.Open(context.Background(), domain.MapConfig{}); err != nil {
			t.Fatalf("open: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunReloader(ctx, 5*time.Millisecond)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(2 * time.Second)
	for svc.Sessions() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("abandoned sessions were not reaped, %d still open", svc.Sessions())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMapService_SessionsGaugeUnderConcurrency(t *testing.T) {
	svc := usecases.NewMapService(nil, simulation.NewSeedProvider(), nil, nil, usecases.MapServiceConfig{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(closeIt bool) {
			defer wg.Done()
			view, err := svc.Open(context.Background(), domain.MapConfig{})
			if err != nil {
				t.Errorf("open: %v", err)
				return
			}
			if closeIt {
				if err := svc.Close(view.SessionID); err != nil {
					t.Errorf("close: %v", err)
				}
			}
		}(i%2 == 0)
	}
	wg.Wait()

	if svc.Sessions() != 25 {
		t.Fatalf("expected 25 open sessions, got %d", svc.Sessions())
	}
	if got := testutil.ToFloat64(metrics.MapSessionsOpen); got != 25 {
		t.Errorf("expected sessions gauge 25, got %v", got)
	}
}
