// ABOUTME: Export and import functionality for position history
// ABOUTME: Supports YAML backup format and a markdown report with solar time per record

package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harper/shichen/internal/models"
	"github.com/harper/shichen/internal/solar"
	"gopkg.in/yaml.v3"
)

// BackupVersion is the current backup format version.
const BackupVersion = "1.0"

// BackupTool names the producer recorded in backups.
const BackupTool = "shichen"

// Backup represents the YAML backup format.
type Backup struct {
	Version    string           `yaml:"version"`
	ExportedAt time.Time        `yaml:"exported_at"`
	Tool       string           `yaml:"tool"`
	Positions  []PositionBackup `yaml:"positions"`
}

// PositionBackup represents a position in the backup format.
type PositionBackup struct {
	ID             string    `yaml:"id"`
	Source         string    `yaml:"source"`
	Latitude       float64   `yaml:"latitude"`
	Longitude      float64   `yaml:"longitude"`
	Precision      string    `yaml:"precision"`
	AccuracyMeters *float64  `yaml:"accuracy_meters,omitempty"`
	RecordedAt     time.Time `yaml:"recorded_at"`
	CreatedAt      time.Time `yaml:"created_at"`
}

// ExportToYAML exports all positions to YAML format.
func ExportToYAML(repo Repository) ([]byte, error) {
	positions, err := repo.ListPositions(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	backup := Backup{
		Version:    BackupVersion,
		ExportedAt: time.Now().UTC(),
		Tool:       BackupTool,
		Positions:  make([]PositionBackup, len(positions)),
	}
	for i, pos := range positions {
		backup.Positions[i] = PositionBackup{
			ID:             pos.ID.String(),
			Source:         pos.Source,
			Latitude:       pos.Latitude,
			Longitude:      pos.Longitude,
			Precision:      string(pos.Precision),
			AccuracyMeters: pos.AccuracyMeters,
			RecordedAt:     pos.RecordedAt,
			CreatedAt:      pos.CreatedAt,
		}
	}

	return yaml.Marshal(backup)
}

// ImportFromYAML restores positions from a YAML backup and returns how
// many were imported. This is a restore and does NOT deduplicate.
func ImportFromYAML(repo Repository, data []byte) (int, error) {
	var backup Backup
	if err := yaml.Unmarshal(data, &backup); err != nil {
		return 0, fmt.Errorf("parse yaml: %w", err)
	}
	if backup.Version != BackupVersion {
		return 0, fmt.Errorf("unsupported backup version: %s (expected %s)", backup.Version, BackupVersion)
	}
	if backup.Tool != BackupTool {
		return 0, fmt.Errorf("wrong tool: %s (expected %s)", backup.Tool, BackupTool)
	}

	for i, pb := range backup.Positions {
		id, err := uuid.Parse(pb.ID)
		if err != nil {
			return i, fmt.Errorf("invalid position ID %s: %w", pb.ID, err)
		}
		precision, err := models.ParsePrecision(pb.Precision)
		if err != nil {
			return i, fmt.Errorf("position %s: %w", pb.ID, err)
		}
		if err := models.ValidateCoordinates(pb.Latitude, pb.Longitude); err != nil {
			return i, fmt.Errorf("position %s: %w", pb.ID, err)
		}

		rec := &models.PositionRecord{
			ID:             id,
			Source:         pb.Source,
			Latitude:       pb.Latitude,
			Longitude:      pb.Longitude,
			Precision:      precision,
			AccuracyMeters: pb.AccuracyMeters,
			RecordedAt:     pb.RecordedAt,
			CreatedAt:      pb.CreatedAt,
		}
		if err := repo.ImportPosition(rec); err != nil {
			return i, fmt.Errorf("create position: %w", err)
		}
	}

	return len(backup.Positions), nil
}

// ExportToMarkdown renders positions as a markdown table, with the solar
// time and double hour at each recording in loc.
func ExportToMarkdown(positions []*models.PositionRecord, loc *time.Location) []byte {
	var sb strings.Builder

	now := time.Now().In(loc)
	sb.WriteString(fmt.Sprintf("# Shichen History - %s\n\n", now.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	if len(positions) == 0 {
		sb.WriteString("No positions recorded.\n")
		return []byte(sb.String())
	}

	sb.WriteString("| Date | Source | Precision | Coordinates | Solar time | Shichen |\n")
	sb.WriteString("|------|--------|-----------|-------------|------------|---------|\n")

	for _, pos := range positions {
		civil := pos.RecordedAt.In(loc)
		data := solar.Compute(civil, pos.GeoPosition())
		info := solar.BranchAt(data.Shichen.Index)
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | (%.4f, %.4f) | %s | %s %s |\n",
			civil.Format("2006-01-02 15:04"), pos.Source, pos.Precision,
			pos.Latitude, pos.Longitude,
			data.SolarTime.Format("15:04"), info.Hanzi, info.Branch))
	}

	return []byte(sb.String())
}
