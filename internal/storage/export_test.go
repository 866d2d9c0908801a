// ABOUTME: Tests for export and import functionality
// ABOUTME: Covers YAML backup round trips and the markdown history report

package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/harper/shichen/internal/models"
)

func TestExportToYAML(t *testing.T) {
	db := testDB(t)
	_ = db.ImportPosition(record(t, "gps", 41.8781, -87.6298, hoursAgo(1)))

	data, err := ExportToYAML(db)
	if err != nil {
		t.Fatalf("failed to export: %v", err)
	}
	yamlStr := string(data)

	for _, want := range []string{
		"version: \"1.0\"",
		"tool: shichen",
		"exported_at:",
		"latitude: 41.8781",
		"source: gps",
		"precision: high",
		"accuracy_meters: 12",
	} {
		if !strings.Contains(yamlStr, want) {
			t.Errorf("export missing %q", want)
		}
	}
}

func TestImportFromYAML(t *testing.T) {
	db := testDB(t)

	yaml := `version: "1.0"
exported_at: "2026-01-31T12:00:00Z"
tool: shichen

positions:
  - id: "22222222-2222-2222-2222-222222222222"
    source: gps
    latitude: 41.8781
    longitude: -87.6298
    precision: high
    accuracy_meters: 8
    recorded_at: "2024-12-14T10:00:00Z"
    created_at: "2024-12-14T10:00:00Z"
  - id: "33333333-3333-3333-3333-333333333333"
    source: timezone
    latitude: 0
    longitude: -90
    precision: low
    recorded_at: "2024-12-14T09:00:00Z"
    created_at: "2024-12-14T09:00:00Z"
`

	n, err := ImportFromYAML(db, []byte(yaml))
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 imported, got %d", n)
	}

	latest, err := db.LatestPosition()
	if err != nil {
		t.Fatalf("failed to get latest: %v", err)
	}
	if latest.ID.String() != "22222222-2222-2222-2222-222222222222" {
		t.Errorf("got ID %s, want 22222222-...", latest.ID)
	}
	if latest.AccuracyMeters == nil || *latest.AccuracyMeters != 8 {
		t.Errorf("expected accuracy 8, got %v", latest.AccuracyMeters)
	}
}

func TestImportFromYAML_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"invalid version", "version: \"2.0\"\ntool: shichen\npositions: []\n"},
		{"wrong tool", "version: \"1.0\"\ntool: position\npositions: []\n"},
		{"bad yaml", "version: [\n"},
		{"bad id", "version: \"1.0\"\ntool: shichen\npositions:\n  - id: nope\n    precision: low\n"},
		{"bad precision", "version: \"1.0\"\ntool: shichen\npositions:\n  - id: 22222222-2222-2222-2222-222222222222\n    precision: exact\n"},
		{"bad latitude", "version: \"1.0\"\ntool: shichen\npositions:\n  - id: 22222222-2222-2222-2222-222222222222\n    precision: low\n    latitude: 91\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ImportFromYAML(testDB(t), []byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestYAMLRoundTripAcrossBackends(t *testing.T) {
	src := testDB(t)
	for i := 0; i < 3; i++ {
		_ = src.ImportPosition(record(t, "gps", float64(i), float64(i), hoursAgo(i)))
	}
	data, err := ExportToYAML(src)
	if err != nil {
		t.Fatalf("failed to export: %v", err)
	}

	dst := testBadger(t)
	if _, err := ImportFromYAML(dst, data); err != nil {
		t.Fatalf("failed to import into badger: %v", err)
	}
	got, _ := dst.ListPositions(time.Time{})
	if len(got) != 3 {
		t.Errorf("expected 3 positions, got %d", len(got))
	}
}

func TestExportToMarkdown(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	rec := record(t, "gps", 31.23, 121.47, time.Date(2026, 3, 14, 4, 0, 0, 0, time.UTC))

	md := string(ExportToMarkdown([]*models.PositionRecord{rec}, shanghai))

	if !strings.Contains(md, "# Shichen History") {
		t.Error("missing header")
	}
	if !strings.Contains(md, "| 2026-03-14 12:00 | gps | high | (31.2300, 121.4700) |") {
		t.Errorf("missing row, got:\n%s", md)
	}
	// 121.47E is 5.88 minutes ahead of the 120E meridian.
	if !strings.Contains(md, "| 12:05 | 午 wu |") {
		t.Errorf("missing solar time and branch, got:\n%s", md)
	}
}

func TestExportToMarkdown_Empty(t *testing.T) {
	md := string(ExportToMarkdown(nil, time.UTC))
	if !strings.Contains(md, "No positions recorded.") {
		t.Error("expected empty message")
	}
}
