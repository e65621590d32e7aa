package usecases

import (
	"context"
	"fmt"
	"sort"

	"github.com/samirrijal/safemap/internal/core/domain"
	"github.com/samirrijal/safemap/internal/core/ports"
	"github.com/samirrijal/safemap/internal/pkg/geospatial"
)

// EntityService exposes the stored entity catalogue.
type EntityService struct {
	entities ports.EntityRepository
}

// NewEntityService creates a new EntityService.
func NewEntityService(entities ports.EntityRepository) *EntityService {
	return &EntityService{entities: entities}
}

// List returns every stored entity.
func (s *EntityService) List(ctx context.Context) ([]domain.GeoEntity, error) {
	return s.entities.Entities(ctx)
}

// InWindow returns the stored entities that would be drawn on a map centred
// on center.
func (s *EntityService) InWindow(ctx context.Context, center domain.GeoPoint) ([]domain.GeoEntity, error) {
	candidates, err := s.entities.InBounds(ctx, geospatial.WindowBounds(center))
	if err != nil {
		return nil, fmt.Errorf("entities in window: %w", err)
	}
	out := candidates[:0]
	for _, e := range candidates {
		if _, ok := geospatial.ProjectVisible(e.Location, center); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Nearby returns the stored entities within radius meters of p, nearest
// first.
func (s *EntityService) Nearby(ctx context.Context, p domain.GeoPoint, radius float64) ([]domain.GeoEntity, error) {
	candidates, err := s.entities.InBounds(ctx, geospatial.BoundsAround(p, radius))
	if err != nil {
		return nil, fmt.Errorf("entities near %s: %w", p, err)
	}
	out := candidates[:0]
	for _, e := range candidates {
		if geospatial.Distance(p, e.Location) <= radius {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return geospatial.Distance(p, out[i].Location) < geospatial.Distance(p, out[j].Location)
	})
	return out, nil
}

// Import stores entities, replacing any with the same id.
func (s *EntityService) Import(ctx context.Context, entities []domain.GeoEntity) error {
	if len(entities) == 0 {
		return nil
	}
	return s.entities.UpsertBatch(ctx, entities)
}
