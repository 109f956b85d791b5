package geo

import (
	"context"
	"log/slog"
	"strings"

	"github.com/avolkov/geochat/internal/domain"
	"github.com/avolkov/geochat/internal/store"
)

// CachedGeocoder is a read-through cache in front of another geocoder.
// Failures are never cached; a cache write failure only costs a warning.
type CachedGeocoder struct {
	next   Geocoder
	repo   store.Repository
	logger *slog.Logger
}

// NewCachedGeocoder wraps next with the repository-backed cache.
func NewCachedGeocoder(next Geocoder, repo store.Repository, logger *slog.Logger) *CachedGeocoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedGeocoder{next: next, repo: repo, logger: logger}
}

// Geocode implements Geocoder.
func (c *CachedGeocoder) Geocode(ctx context.Context, address string) (domain.Coordinate, error) {
	key := strings.TrimSpace(address)

	cached, err := c.repo.GetCoordinate(ctx, key)
	if err != nil {
		c.logger.Warn("geocode cache read failed", "address", key, "error", err)
	} else if cached != nil {
		return *cached, nil
	}

	coord, err := c.next.Geocode(ctx, address)
	if err != nil {
		return domain.Coordinate{}, err
	}

	if err := c.repo.PutCoordinate(ctx, key, coord); err != nil {
		c.logger.Warn("geocode cache write failed", "address", key, "error", err)
	}
	return coord, nil
}
