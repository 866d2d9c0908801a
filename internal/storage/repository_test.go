// ABOUTME: Contract tests run against every Repository backend
// ABOUTME: Covers save with deduplication, listing, ranges, deletion, pruning, and reset

package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harper/shichen/internal/models"
)

var testNow = time.Now().UTC().Truncate(time.Second)

func hoursAgo(h int) time.Time {
	return testNow.Add(-time.Duration(h) * time.Hour)
}

func record(t *testing.T, source string, lat, lng float64, at time.Time) *models.PositionRecord {
	t.Helper()
	return models.NewPositionRecord(models.GeoPosition{
		Latitude:       lat,
		Longitude:      lng,
		Precision:      models.PrecisionHigh,
		Timestamp:      at,
		AccuracyMeters: models.Float64Ptr(12),
		Source:         source,
	})
}

// forEachBackend runs fn against a fresh SQLite and Badger repository.
func forEachBackend(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, testDB(t)) })
	t.Run("badger", func(t *testing.T) { fn(t, testBadger(t)) })
}

func TestSavePosition(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		rec := record(t, "gps", 41.8781, -87.6298, hoursAgo(1))
		saved, err := repo.SavePosition(rec)
		if err != nil {
			t.Fatalf("failed to save position: %v", err)
		}
		if !saved {
			t.Fatal("expected first position to be saved")
		}

		got, err := repo.GetPosition(rec.ID)
		if err != nil {
			t.Fatalf("failed to get position: %v", err)
		}
		if got.Latitude != rec.Latitude || got.Longitude != rec.Longitude {
			t.Errorf("coordinates mismatch: got (%f, %f)", got.Latitude, got.Longitude)
		}
		if got.Precision != models.PrecisionHigh {
			t.Errorf("expected precision high, got %s", got.Precision)
		}
		if got.AccuracyMeters == nil || *got.AccuracyMeters != 12 {
			t.Errorf("expected accuracy 12, got %v", got.AccuracyMeters)
		}
		if !got.RecordedAt.Equal(rec.RecordedAt) {
			t.Errorf("recorded_at mismatch: want %v, got %v", rec.RecordedAt, got.RecordedAt)
		}
	})
}

func TestSavePosition_NilAccuracy(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		rec := record(t, "timezone", 0, 120, hoursAgo(1))
		rec.AccuracyMeters = nil
		rec.Precision = models.PrecisionLow
		if _, err := repo.SavePosition(rec); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		got, err := repo.GetPosition(rec.ID)
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.AccuracyMeters != nil {
			t.Errorf("expected nil accuracy, got %v", *got.AccuracyMeters)
		}
	})
}

func TestSavePosition_Deduplicates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		if _, err := repo.SavePosition(record(t, "gps", 10, 20, hoursAgo(2))); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		saved, err := repo.SavePosition(record(t, "gps", 10.00000001, 20, hoursAgo(1)))
		if err != nil {
			t.Fatalf("failed to save duplicate: %v", err)
		}
		if saved {
			t.Error("expected same coordinates to be skipped")
		}

		saved, err = repo.SavePosition(record(t, "gps", 10.001, 20, hoursAgo(1)))
		if err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if !saved {
			t.Error("expected moved position to be saved")
		}

		all, _ := repo.ListPositions(time.Time{})
		if len(all) != 2 {
			t.Errorf("expected 2 positions, got %d", len(all))
		}
	})
}

func TestImportPosition_DoesNotDeduplicate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		for i := 0; i < 3; i++ {
			if err := repo.ImportPosition(record(t, "gps", 10, 20, hoursAgo(i+1))); err != nil {
				t.Fatalf("failed to import: %v", err)
			}
		}
		all, _ := repo.ListPositions(time.Time{})
		if len(all) != 3 {
			t.Errorf("expected 3 positions, got %d", len(all))
		}
	})
}

func TestLatestPosition(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		if _, err := repo.LatestPosition(); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on empty store, got %v", err)
		}

		_ = repo.ImportPosition(record(t, "gps", 1, 1, hoursAgo(1)))
		_ = repo.ImportPosition(record(t, "geoip", 2, 2, hoursAgo(3)))

		latest, err := repo.LatestPosition()
		if err != nil {
			t.Fatalf("failed to get latest: %v", err)
		}
		if latest.Source != "gps" {
			t.Errorf("expected most recent (gps), got %s", latest.Source)
		}
	})
}

func TestListPositions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		for i := 0; i < 4; i++ {
			_ = repo.ImportPosition(record(t, "gps", float64(i), float64(i), hoursAgo(i*2)))
		}

		all, err := repo.ListPositions(time.Time{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 4 {
			t.Fatalf("expected 4 positions, got %d", len(all))
		}
		for i := 1; i < len(all); i++ {
			if all[i].RecordedAt.After(all[i-1].RecordedAt) {
				t.Error("positions should be newest first")
			}
		}

		recent, err := repo.ListPositions(hoursAgo(3))
		if err != nil {
			t.Fatalf("failed to list since: %v", err)
		}
		if len(recent) != 2 {
			t.Errorf("expected 2 positions in the last 3 hours, got %d", len(recent))
		}
	})
}

func TestListPositionsInRange(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		for i := 0; i < 5; i++ {
			_ = repo.ImportPosition(record(t, "gps", float64(i), float64(i), hoursAgo(i)))
		}

		got, err := repo.ListPositionsInRange(hoursAgo(3), hoursAgo(1))
		if err != nil {
			t.Fatalf("failed to list range: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("expected 3 positions in range (inclusive), got %d", len(got))
		}
	})
}

func TestDeletePosition(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		rec := record(t, "gps", 1, 1, hoursAgo(1))
		_ = repo.ImportPosition(rec)

		if err := repo.DeletePosition(rec.ID); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.GetPosition(rec.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.DeletePosition(uuid.New()); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown id, got %v", err)
		}
	})
}

func TestDeletePositionsBefore(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		for i := 0; i < 5; i++ {
			_ = repo.ImportPosition(record(t, "gps", float64(i), float64(i), hoursAgo(i*24)))
		}

		n, err := repo.DeletePositionsBefore(hoursAgo(48))
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 pruned, got %d", n)
		}

		left, _ := repo.ListPositions(time.Time{})
		if len(left) != 3 {
			t.Errorf("expected 3 remaining, got %d", len(left))
		}
	})
}

func TestReset(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		_ = repo.ImportPosition(record(t, "gps", 1, 1, hoursAgo(1)))
		if err := repo.Reset(); err != nil {
			t.Fatalf("failed to reset: %v", err)
		}
		all, _ := repo.ListPositions(time.Time{})
		if len(all) != 0 {
			t.Errorf("expected empty store after reset, got %d", len(all))
		}
	})
}
