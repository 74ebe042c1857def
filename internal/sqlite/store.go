package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"impound-lot-finder/internal/database"
	"impound-lot-finder/internal/models"

	_ "modernc.org/sqlite"
)

const (
	DefaultDBFileName = "data.db"
	schemaVersion     = 1
)

// Store is a SQLite-based data store implementing database.DataStore
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	facilityRepo     database.FacilityRepository
	geocodeCacheRepo database.GeocodeCacheRepository
	routeCacheRepo   database.RouteCacheRepository
}

var _ database.DataStore = (*Store)(nil)

// New creates a new SQLite store at the specified path. An empty facilities
// table is seeded with database.DefaultFacilities.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	log.Printf("[DB] Opening SQLite database at: %s", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.facilityRepo = &facilityRepository{store: store}
	store.geocodeCacheRepo = &geocodeCacheRepository{store: store}
	store.routeCacheRepo = &routeCacheRepository{store: store}

	if err := store.seedFacilities(context.Background(), database.DefaultFacilities()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed facilities: %w", err)
	}

	return store, nil
}

// GetDBPath returns the current database file path
func (s *Store) GetDBPath() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist, create everything
		return s.createSchema()
	}

	if version < schemaVersion {
		_, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion)
		return err
	}

	return nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (1);

	-- Impound lots
	CREATE TABLE IF NOT EXISTS facilities (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		hours TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL,
		lng REAL NOT NULL
	);

	-- Address lookups keyed by normalized address
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Driving routes keyed by rounded endpoints
	CREATE TABLE IF NOT EXISTS route_cache (
		origin_lat REAL NOT NULL,
		origin_lng REAL NOT NULL,
		dest_lat REAL NOT NULL,
		dest_lng REAL NOT NULL,
		distance_meters REAL NOT NULL,
		duration_secs REAL NOT NULL,
		geometry TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (origin_lat, origin_lng, dest_lat, dest_lng)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("[DB] SQLite schema initialized (version %d)", schemaVersion)
	return nil
}

func (s *Store) seedFacilities(ctx context.Context, facilities []models.Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM facilities").Scan(&count); err != nil {
		return fmt.Errorf("failed to count facilities: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO facilities (id, name, address, phone, hours, lat, lng) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range facilities {
		if _, err := stmt.ExecContext(ctx, f.ID, f.Name, f.Address, f.Phone, f.Hours, f.Lat, f.Lng); err != nil {
			return fmt.Errorf("failed to insert facility %d: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("[DB] Seeded %d facilities", len(facilities))
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Facilities() database.FacilityRepository       { return s.facilityRepo }
func (s *Store) GeocodeCache() database.GeocodeCacheRepository { return s.geocodeCacheRepo }
func (s *Store) RouteCache() database.RouteCacheRepository     { return s.routeCacheRepo }
