package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"impound-lot-finder/internal/models"
)

type geocodeCacheRepository struct {
	store *Store
}

// Get returns nil, nil on a cache miss
func (r *geocodeCacheRepository) Get(ctx context.Context, address string) (*models.GeocodeCacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT address, lat, lng, display_name FROM geocode_cache WHERE address = ?`

	var entry models.GeocodeCacheEntry
	err := r.store.db.QueryRowContext(ctx, query, address).Scan(
		&entry.Address, &entry.Coords.Lat, &entry.Coords.Lng, &entry.DisplayName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get geocode cache entry: %w", err)
	}

	return &entry, nil
}

func (r *geocodeCacheRepository) Set(ctx context.Context, entry *models.GeocodeCacheEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `INSERT OR REPLACE INTO geocode_cache (address, lat, lng, display_name) VALUES (?, ?, ?, ?)`

	_, err := r.store.db.ExecContext(ctx, query,
		entry.Address, entry.Coords.Lat, entry.Coords.Lng, entry.DisplayName,
	)
	if err != nil {
		return fmt.Errorf("failed to set geocode cache entry: %w", err)
	}

	return nil
}

func (r *geocodeCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM geocode_cache"); err != nil {
		return fmt.Errorf("failed to clear geocode cache: %w", err)
	}

	return nil
}
