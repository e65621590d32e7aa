package ports

import (
	"context"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// EntityProvider supplies the points of interest drawn on a map.
type EntityProvider interface {
	// Entities returns the full ordered entity list. It may be empty.
	Entities(ctx context.Context) ([]domain.GeoEntity, error)
}

// EntityRepository persists entities and supports window queries.
type EntityRepository interface {
	EntityProvider
	Upsert(ctx context.Context, e *domain.GeoEntity) error
	UpsertBatch(ctx context.Context, entities []domain.GeoEntity) error
	InBounds(ctx context.Context, b domain.Bounds) ([]domain.GeoEntity, error)
}

// MetricsProvider produces the next metrics snapshot. prev is the snapshot
// currently published and is never nil.
type MetricsProvider interface {
	Next(ctx context.Context, prev *domain.MetricsSnapshot) (*domain.MetricsSnapshot, error)
}

// SystemEventRepository persists the health panel's event feed.
type SystemEventRepository interface {
	Insert(ctx context.Context, ev *domain.SystemEvent) error
	Recent(ctx context.Context, limit int) ([]domain.SystemEvent, error)
}
