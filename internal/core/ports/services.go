package ports

import (
	"context"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishSelectionChanged(ctx context.Context, change domain.SelectionChange) error
	PublishSnapshot(ctx context.Context, snap *domain.MetricsSnapshot) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeSnapshots(ctx context.Context, handler func(ctx context.Context, snap *domain.MetricsSnapshot) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// FeedPublisher publishes raw health readings for API instances that read
// their metrics from the broker.
type FeedPublisher interface {
	PublishFeed(ctx context.Context, snap *domain.MetricsSnapshot) error
}
