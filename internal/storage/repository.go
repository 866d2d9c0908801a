// ABOUTME: Repository interface for the position history store
// ABOUTME: Lets the recorder, CLI, and servers swap SQLite and Badger backends

package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/harper/shichen/internal/models"
)

// PositionRepository defines operations on recorded positions.
// Lists are ordered newest first.
type PositionRepository interface {
	// SavePosition stores rec unless it sits on the latest recorded
	// coordinates. It reports whether a row was written.
	SavePosition(rec *models.PositionRecord) (bool, error)
	// ImportPosition stores rec as-is, without deduplication.
	ImportPosition(rec *models.PositionRecord) error
	GetPosition(id uuid.UUID) (*models.PositionRecord, error)
	LatestPosition() (*models.PositionRecord, error)
	// ListPositions returns positions recorded after since; a zero since
	// returns everything.
	ListPositions(since time.Time) ([]*models.PositionRecord, error)
	ListPositionsInRange(from, to time.Time) ([]*models.PositionRecord, error)
	DeletePosition(id uuid.UUID) error
	// DeletePositionsBefore removes positions recorded before t and
	// returns how many were removed.
	DeletePositionsBefore(t time.Time) (int, error)
}

// Repository combines position operations with lifecycle management.
type Repository interface {
	PositionRepository
	Close() error
	Reset() error
}
