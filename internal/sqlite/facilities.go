package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"impound-lot-finder/internal/database"
	"impound-lot-finder/internal/models"
)

type facilityRepository struct {
	store *Store
}

func (r *facilityRepository) List(ctx context.Context) ([]models.Facility, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT id, name, address, phone, hours, lat, lng FROM facilities ORDER BY id`

	rows, err := r.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query facilities: %w", err)
	}
	defer rows.Close()

	var facilities []models.Facility
	for rows.Next() {
		var f models.Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.Address, &f.Phone, &f.Hours, &f.Lat, &f.Lng); err != nil {
			return nil, fmt.Errorf("failed to scan facility: %w", err)
		}
		facilities = append(facilities, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facilities: %w", err)
	}

	return facilities, nil
}

func (r *facilityRepository) GetByID(ctx context.Context, id int64) (*models.Facility, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT id, name, address, phone, hours, lat, lng FROM facilities WHERE id = ?`

	var f models.Facility
	err := r.store.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.Name, &f.Address, &f.Phone, &f.Hours, &f.Lat, &f.Lng,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get facility: %w", err)
	}

	return &f, nil
}
