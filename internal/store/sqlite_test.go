package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/avolkov/geochat/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "geochat.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestCoordinateRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	want := domain.Coordinate{Lat: 52.52, Lon: 13.405}
	if err := repo.PutCoordinate(ctx, "5 Oak Ave", want); err != nil {
		t.Fatalf("PutCoordinate failed: %v", err)
	}

	got, err := repo.GetCoordinate(ctx, "5 Oak Ave")
	if err != nil {
		t.Fatalf("GetCoordinate failed: %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("GetCoordinate = %+v, want %+v", got, want)
	}
}

func TestGetCoordinateMiss(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)

	got, err := repo.GetCoordinate(context.Background(), "never stored")
	if err != nil {
		t.Fatalf("GetCoordinate failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for a cache miss, got %+v", got)
	}
}

func TestPutCoordinateUpserts(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.PutCoordinate(ctx, "moving target", domain.Coordinate{Lat: 1, Lon: 1}); err != nil {
		t.Fatalf("PutCoordinate failed: %v", err)
	}
	want := domain.Coordinate{Lat: 2, Lon: 2}
	if err := repo.PutCoordinate(ctx, "moving target", want); err != nil {
		t.Fatalf("second PutCoordinate failed: %v", err)
	}

	got, err := repo.GetCoordinate(ctx, "moving target")
	if err != nil {
		t.Fatalf("GetCoordinate failed: %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("expected updated coordinate %+v, got %+v", want, got)
	}
}

func TestPruneOlderThan(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.PutCoordinate(ctx, "a", domain.Coordinate{Lat: 1, Lon: 1}); err != nil {
		t.Fatalf("PutCoordinate failed: %v", err)
	}
	if err := repo.PutCoordinate(ctx, "b", domain.Coordinate{Lat: 2, Lon: 2}); err != nil {
		t.Fatalf("PutCoordinate failed: %v", err)
	}

	// A generous max age keeps the fresh entries.
	pruned, err := repo.PruneOlderThan(ctx, time.Hour)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if pruned != 0 {
		t.Errorf("expected 0 pruned with fresh entries, got %d", pruned)
	}

	// A negative max age makes every entry stale.
	pruned, err = repo.PruneOlderThan(ctx, -time.Hour)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if pruned != 2 {
		t.Errorf("expected 2 pruned, got %d", pruned)
	}

	got, err := repo.GetCoordinate(ctx, "a")
	if err != nil {
		t.Fatalf("GetCoordinate failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected entry pruned, got %+v", got)
	}
}
