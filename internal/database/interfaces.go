package database

import (
	"context"

	"impound-lot-finder/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Facilities() FacilityRepository
	GeocodeCache() GeocodeCacheRepository
	RouteCache() RouteCacheRepository
}

// FacilityRepository serves the static facility set
type FacilityRepository interface {
	List(ctx context.Context) ([]models.Facility, error)
	GetByID(ctx context.Context, id int64) (*models.Facility, error)
}

// GeocodeCacheRepository handles address lookup cache persistence.
// Keys are normalized addresses.
type GeocodeCacheRepository interface {
	Get(ctx context.Context, address string) (*models.GeocodeCacheEntry, error)
	Set(ctx context.Context, entry *models.GeocodeCacheEntry) error
	Clear(ctx context.Context) error
}

// RouteCacheRepository handles driving route cache persistence
type RouteCacheRepository interface {
	Get(ctx context.Context, origin, dest models.Coordinates) (*models.RouteCacheEntry, error)
	Set(ctx context.Context, entry *models.RouteCacheEntry) error
	Clear(ctx context.Context) error
}
