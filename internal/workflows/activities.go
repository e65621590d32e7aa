package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/core/usecases"
)

// SweepActivities holds the activity implementations for the health sweep.
type SweepActivities struct {
	Refresher *usecases.TelemetryRefresher
	Publisher ports.FeedPublisher          // optional
	Events    ports.SystemEventRepository // optional
}

// CollectReading runs a manual refresh and returns the resulting snapshot.
// A refresh already in flight is not retried.
func (a *SweepActivities) CollectReading(ctx context.Context) (*domain.MetricsSnapshot, error) {
	snap, err := a.Refresher.Refresh(ctx)
	if err != nil {
		if errors.Is(err, usecases.ErrRefreshInFlight) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), "RefreshInFlight", err)
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return snap, nil
}

// PublishReading puts the snapshot on the health feed.
func (a *SweepActivities) PublishReading(ctx context.Context, snap *domain.MetricsSnapshot) error {
	if a.Publisher == nil {
		activity.GetLogger(ctx).Info("no feed publisher configured, skipping publish")
		return nil
	}
	if err := a.Publisher.PublishFeed(ctx, snap); err != nil {
		return fmt.Errorf("publish reading: %w", err)
	}
	return nil
}

// RecordSweepFailure adds an error entry to the event feed.
func (a *SweepActivities) RecordSweepFailure(ctx context.Context, reason string) error {
	if a.Events == nil {
		activity.GetLogger(ctx).Warn("health sweep failed", "reason", reason)
		return nil
	}
	return a.Events.Insert(ctx, &domain.SystemEvent{
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Message: "Health sweep failed: " + reason,
		Type:    domain.EventError,
	})
}
