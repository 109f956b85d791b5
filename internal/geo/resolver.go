package geo

import (
	"context"
	"log/slog"

	"github.com/avolkov/geochat/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Resolver geocodes the locations of one completed turn and builds the
// replacement marker set. Lookups for a turn are independent, so they are
// issued concurrently and joined before the set is assembled; a failed
// lookup is simply omitted and never blocks or fails the others.
type Resolver struct {
	geocoder Geocoder
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(geocoder Geocoder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{geocoder: geocoder, logger: logger}
}

// Resolve fans out one geocode lookup per location, fans the results back
// in, fills in the Coordinates field of each resolved location, and
// returns the full marker set: the user marker (when the user position is
// known) plus one marker per resolved place, in discovery order.
func (r *Resolver) Resolve(ctx context.Context, userLoc *domain.Coordinate, locations []domain.ParsedLocation) []domain.Marker {
	coords := make([]*domain.Coordinate, len(locations))

	var g errgroup.Group
	for i, loc := range locations {
		i, loc := i, loc
		g.Go(func() error {
			coord, err := r.geocoder.Geocode(ctx, loc.Address)
			if err != nil {
				r.logger.Warn("geocode lookup failed", "address", loc.Address, "error", err)
				return nil
			}
			coords[i] = &coord
			return nil
		})
	}
	// Lookups never surface errors; the join only waits for completion.
	_ = g.Wait()

	markers := make([]domain.Marker, 0, len(locations)+1)
	if userLoc != nil {
		markers = append(markers, domain.Marker{
			Kind:       domain.MarkerUser,
			Label:      "You are here",
			Coordinate: *userLoc,
		})
	}
	for i := range locations {
		if coords[i] == nil {
			continue
		}
		locations[i].Coordinates = coords[i]
		markers = append(markers, domain.Marker{
			Kind:       domain.MarkerPlace,
			Label:      locations[i].Name,
			Coordinate: *coords[i],
			Rating:     locations[i].Rating,
		})
	}
	return markers
}
