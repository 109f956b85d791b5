// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/avolkov/geochat/internal/domain"
)

// Repository defines the interface for the geocode cache. Chat history is
// intentionally not persisted; the cache only spares repeat geocoder round
// trips for addresses the assistant keeps recommending.
type Repository interface {
	// GetCoordinate retrieves a cached coordinate for an address.
	// Returns (nil, nil) on a cache miss.
	GetCoordinate(ctx context.Context, address string) (*domain.Coordinate, error)

	// PutCoordinate stores a resolved coordinate for an address.
	PutCoordinate(ctx context.Context, address string, coord domain.Coordinate) error

	// PruneOlderThan removes cache entries resolved more than maxAge ago.
	PruneOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
