package simulation

import (
	"context"

	"github.com/samirrijal/safemap/internal/core/domain"
)

// SeedProvider serves the built-in Delhi points of interest that every map
// shows alongside externally supplied entities.
type SeedProvider struct{}

// NewSeedProvider creates a SeedProvider.
func NewSeedProvider() *SeedProvider { return &SeedProvider{} }

// Entities returns a fresh copy of the seed set.
func (SeedProvider) Entities(_ context.Context) ([]domain.GeoEntity, error) {
	return SeedEntities(), nil
}

// SeedEntities returns the seed set in display order.
func SeedEntities() []domain.GeoEntity {
	return []domain.GeoEntity{
		{
			ID:          "1",
			Location:    domain.GeoPoint{Lat: 28.6562, Lng: 77.2410},
			Kind:        domain.KindSafeZone,
			Title:       "Red Fort Safe Zone",
			Description: "Tourist safe zone with 24/7 monitoring",
			Status:      domain.StatusActive,
		},
		{
			ID:          "2",
			Location:    domain.GeoPoint{Lat: 28.6129, Lng: 77.2295},
			Kind:        domain.KindTouristGroup,
			Title:       "Tourist Group Alpha",
			Description: "15 tourists from Japan",
			Status:      domain.StatusActive,
		},
		{
			ID:          "3",
			Location:    domain.GeoPoint{Lat: 28.6328, Lng: 77.2200},
			Kind:        domain.KindAlert,
			Title:       "Traffic Congestion Alert",
			Description: "Heavy traffic reported in this area",
			Status:      domain.StatusWarning,
		},
		{
			ID:          "4",
			Location:    domain.GeoPoint{Lat: 28.5535, Lng: 77.2588},
			Kind:        domain.KindRestrictedZone,
			Title:       "Restricted Area",
			Description: "Construction zone - avoid this area",
			Status:      domain.StatusActive,
		},
		{
			ID:          "5",
			Location:    domain.GeoPoint{Lat: 28.6506, Lng: 77.2334},
			Kind:        domain.KindPoliceStation,
			Title:       "Chandni Chowk Police Station",
			Description: "Emergency services available",
			Status:      domain.StatusActive,
		},
	}
}
