package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avolkov/geochat/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed geocode cache.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		resolved_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_geocode_resolved ON geocode_cache(resolved_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetCoordinate retrieves a cached coordinate for an address.
func (s *SQLiteStore) GetCoordinate(ctx context.Context, address string) (*domain.Coordinate, error) {
	query := `SELECT lat, lon FROM geocode_cache WHERE address = ?`

	row := s.db.QueryRowContext(ctx, query, strings.TrimSpace(address))

	var coord domain.Coordinate
	err := row.Scan(&coord.Lat, &coord.Lon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan geocode row: %w", err)
	}

	return &coord, nil
}

// PutCoordinate stores a resolved coordinate for an address.
func (s *SQLiteStore) PutCoordinate(ctx context.Context, address string, coord domain.Coordinate) error {
	query := `
	INSERT INTO geocode_cache (address, lat, lon, resolved_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(address) DO UPDATE SET
		lat = excluded.lat,
		lon = excluded.lon,
		resolved_at = excluded.resolved_at`

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = s.db.ExecContext(ctx, query,
			strings.TrimSpace(address), coord.Lat, coord.Lon, time.Now().Unix(),
		)
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("upsert geocode entry: %w", err)
}

// PruneOlderThan removes cache entries resolved more than maxAge ago.
func (s *SQLiteStore) PruneOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	threshold := time.Now().Add(-maxAge).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM geocode_cache WHERE resolved_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("prune geocode cache: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
