package natsadapter

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
)

// ErrNoReading is returned by MetricsFeed before the first reading arrives.
var ErrNoReading = errors.New("no reading received from the health feed")

// MetricsFeed is a push-based ports.MetricsProvider: it remembers the latest
// reading delivered by the subscriber and hands it out on each refresh.
type MetricsFeed struct {
	latest atomic.Pointer[domain.MetricsSnapshot]
}

// NewMetricsFeed subscribes to the health feed and returns the provider.
func NewMetricsFeed(ctx context.Context, sub ports.EventSubscriber) (*MetricsFeed, error) {
	f := &MetricsFeed{}
	if err := sub.SubscribeSnapshots(ctx, f.Handle); err != nil {
		return nil, err
	}
	return f, nil
}

// Handle stores a reading. It is the subscriber callback.
func (f *MetricsFeed) Handle(_ context.Context, snap *domain.MetricsSnapshot) error {
	cp := *snap
	f.latest.Store(&cp)
	return nil
}

// Next returns the latest reading.
func (f *MetricsFeed) Next(_ context.Context, _ *domain.MetricsSnapshot) (*domain.MetricsSnapshot, error) {
	snap := f.latest.Load()
	if snap == nil {
		return nil, ErrNoReading
	}
	cp := *snap
	return &cp, nil
}
