package store

import (
	"context"
	"log/slog"
	"time"
)

const pruneInterval = 6 * time.Hour

// StartPruneWorker runs a background goroutine that periodically sweeps
// stale geocode cache entries. Addresses move rarely, so maxAge can be
// generous; the sweep just keeps the cache from growing without bound.
func StartPruneWorker(ctx context.Context, repo Repository, maxAge time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("geocode cache prune worker started", "interval", pruneInterval, "max_age", maxAge)

		for {
			select {
			case <-ticker.C:
				pruned, err := repo.PruneOlderThan(ctx, maxAge)
				if err != nil {
					if isConflict(err) {
						// Transient lock contention; the next sweep catches up.
						slog.Warn("geocode cache busy, skipping prune cycle")
					} else {
						slog.Error("geocode cache prune failed", "error", err)
					}
					continue
				}
				if pruned > 0 {
					slog.Info("geocode cache pruned", "entries", pruned)
				}
			case <-ctx.Done():
				slog.Info("geocode cache prune worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
