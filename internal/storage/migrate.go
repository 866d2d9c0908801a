// ABOUTME: Data migration between history storage backends
// ABOUTME: Opens backends by name and copies positions from source to destination

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// SQLiteFileName is the database file inside the data directory.
const SQLiteFileName = "shichen.db"

// BadgerDirName is the Badger directory inside the data directory.
const BadgerDirName = "badger"

// Open opens the named backend rooted at dataDir.
func Open(backend, dataDir string, l *log.Logger) (Repository, error) {
	switch backend {
	case BackendSQLite, "":
		return NewSQLiteDB(filepath.Join(dataDir, SQLiteFileName))
	case BackendBadger:
		return NewBadgerDB(filepath.Join(dataDir, BadgerDirName), l)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	Positions int
}

// MigrateData copies all positions from src to dst. Positions are written
// oldest first and without deduplication, so dst mirrors src exactly.
// The destination should be empty before calling this function.
func MigrateData(src, dst Repository) (*MigrateSummary, error) {
	summary := &MigrateSummary{}

	positions, err := src.ListPositions(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("list source positions: %w", err)
	}

	for i := len(positions) - 1; i >= 0; i-- {
		pos := positions[i]
		if err := dst.ImportPosition(pos); err != nil {
			return nil, fmt.Errorf("copy position %s: %w", pos.ID, err)
		}
		summary.Positions++
	}

	return summary, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}
