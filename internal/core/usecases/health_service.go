package usecases

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/pkg/telemetry"
)

// HealthService serves the system-health panel.
type HealthService struct {
	refresher   *TelemetryRefresher
	events      ports.SystemEventRepository
	eventsLimit int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewHealthService creates a new HealthService. events may be nil.
func NewHealthService(
	refresher *TelemetryRefresher,
	events ports.SystemEventRepository,
	eventsLimit int,
	logger *slog.Logger,
) *HealthService {
	if eventsLimit <= 0 {
		eventsLimit = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		refresher:   refresher,
		events:      events,
		eventsLimit: eventsLimit,
		timeout:     refresher.latency + 30*time.Second,
		logger:      logger,
	}
}

// View returns the panel's current read model.
func (s *HealthService) View(ctx context.Context) (*domain.HealthView, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanHealthView)
	defer span.End()

	snap := s.refresher.Snapshot()
	span.SetAttributes(attribute.Float64(telemetry.MetricSnapshotAge, time.Since(snap.UpdatedAt).Seconds()))
	events, err := s.RecentEvents(ctx, s.eventsLimit)
	if err != nil {
		s.logger.Warn("load system events", "error", err)
		events = []domain.SystemEvent{}
	}
	return &domain.HealthView{
		Snapshot:    *snap,
		Overall:     snap.Overall(),
		LastUpdated: snap.UpdatedAt,
		Refreshing:  s.refresher.Refreshing(),
		Events:      events,
	}, nil
}

// Overall is the worst status in the current snapshot.
func (s *HealthService) Overall() domain.HealthStatus {
	return s.refresher.Snapshot().Overall()
}

// TriggerRefresh starts a manual refresh that outlives the request that
// asked for it. It returns ErrRefreshInFlight while one is pending.
func (s *HealthService) TriggerRefresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	result, err := s.refresher.RefreshAsync(ctx)
	if err != nil {
		cancel()
		return err
	}
	go func() {
		defer cancel()
		<-result
	}()
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (s *HealthService) RecentEvents(ctx context.Context, limit int) ([]domain.SystemEvent, error) {
	if s.events == nil {
		return []domain.SystemEvent{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = s.eventsLimit
	}
	return s.events.Recent(ctx, limit)
}
