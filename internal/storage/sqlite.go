// ABOUTME: SQLite storage implementation for position history
// ABOUTME: Provides local persistence using the pure Go SQLite driver

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/harper/shichen/internal/models"
	_ "modernc.org/sqlite"
)

// coordEpsilon defines the threshold for considering coordinates equal.
// 0.0000001 degrees is roughly 1.1cm at the equator.
const coordEpsilon = 0.0000001

const positionColumns = `id, source, latitude, longitude, precision, accuracy_meters, recorded_at, created_at`

// SQLiteDB implements Repository with a local SQLite database.
type SQLiteDB struct {
	db   *sql.DB
	path string
}

var _ Repository = (*SQLiteDB)(nil)

// NewSQLiteDB opens the database at path, creating the directory, file,
// and schema as needed.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil { //nolint:gosec // 0750 is appropriate for user data directory
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteDB{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			precision TEXT NOT NULL,
			accuracy_meters REAL,
			recorded_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_positions_recorded_at ON positions(recorded_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteDB) Path() string {
	return s.path
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Reset clears all recorded positions.
func (s *SQLiteDB) Reset() error {
	_, err := s.db.Exec("DELETE FROM positions")
	return err
}

func (s *SQLiteDB) SavePosition(rec *models.PositionRecord) (bool, error) {
	latest, err := s.LatestPosition()
	if err == nil && coordsEqual(latest.Latitude, latest.Longitude, rec.Latitude, rec.Longitude) {
		return false, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}

	if err := s.ImportPosition(rec); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteDB) ImportPosition(rec *models.PositionRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO positions (`+positionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Source, rec.Latitude, rec.Longitude,
		string(rec.Precision), rec.AccuracyMeters, rec.RecordedAt.UTC(), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// coordsEqual compares two coordinate pairs using epsilon for floating-point safety.
func coordsEqual(lat1, lng1, lat2, lng2 float64) bool {
	return math.Abs(lat1-lat2) < coordEpsilon && math.Abs(lng1-lng2) < coordEpsilon
}

func (s *SQLiteDB) GetPosition(id uuid.UUID) (*models.PositionRecord, error) {
	row := s.db.QueryRow(`SELECT `+positionColumns+` FROM positions WHERE id = ?`, id.String())
	return scanPosition(row)
}

func (s *SQLiteDB) LatestPosition() (*models.PositionRecord, error) {
	row := s.db.QueryRow(`SELECT ` + positionColumns + ` FROM positions ORDER BY recorded_at DESC LIMIT 1`)
	return scanPosition(row)
}

func (s *SQLiteDB) ListPositions(since time.Time) ([]*models.PositionRecord, error) {
	if since.IsZero() {
		return s.queryPositions(`SELECT ` + positionColumns + ` FROM positions ORDER BY recorded_at DESC`)
	}
	return s.queryPositions(
		`SELECT `+positionColumns+` FROM positions WHERE recorded_at > ? ORDER BY recorded_at DESC`,
		since.UTC(),
	)
}

func (s *SQLiteDB) ListPositionsInRange(from, to time.Time) ([]*models.PositionRecord, error) {
	return s.queryPositions(
		`SELECT `+positionColumns+` FROM positions
		 WHERE recorded_at >= ? AND recorded_at <= ? ORDER BY recorded_at DESC`,
		from.UTC(), to.UTC(),
	)
}

func (s *SQLiteDB) DeletePosition(id uuid.UUID) error {
	res, err := s.db.Exec("DELETE FROM positions WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDB) DeletePositionsBefore(t time.Time) (int, error) {
	res, err := s.db.Exec("DELETE FROM positions WHERE recorded_at < ?", t.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune positions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune positions: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteDB) queryPositions(query string, args ...any) ([]*models.PositionRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var positions []*models.PositionRecord
	for rows.Next() {
		rec, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, rec)
	}
	return positions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(row scanner) (*models.PositionRecord, error) {
	var (
		idStr     string
		precision string
		accuracy  sql.NullFloat64
		rec       models.PositionRecord
	)
	err := row.Scan(&idStr, &rec.Source, &rec.Latitude, &rec.Longitude,
		&precision, &accuracy, &rec.RecordedAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan position: %w", err)
	}
	rec.ID, _ = uuid.Parse(idStr)
	rec.Precision = models.Precision(precision)
	if accuracy.Valid {
		rec.AccuracyMeters = models.Float64Ptr(accuracy.Float64)
	}
	return &rec, nil
}
