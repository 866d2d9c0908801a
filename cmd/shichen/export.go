// ABOUTME: Export command for generating GeoJSON, markdown, and YAML output
// ABOUTME: Supports time filtering and point or line geometry

package main

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/harper/shichen/internal/geojson"
	"github.com/harper/shichen/internal/models"
	"github.com/harper/shichen/internal/storage"
	"github.com/spf13/cobra"
)

// durationRegex matches relative duration strings like "24h", "7d", "1w", "1m".
var durationRegex = regexp.MustCompile(`^(\d+)([hdwm])$`)

var exportCmd = &cobra.Command{
	Use:     "export",
	Aliases: []string{"e"},
	Short:   "Export position history in various formats",
	Long: `Export recorded positions as GeoJSON, Markdown, or YAML.

GeoJSON points carry the solar time and double hour at each recording.
YAML is a full backup that 'shichen import' can restore.

Examples:
  # Export everything as GeoJSON points
  shichen export

  # Markdown report for the last week
  shichen export --format markdown --since 7d

  # Absolute range
  shichen export --from 2026-03-01 --to 2026-03-14

  # One LineString track per source
  shichen export --geometry line

  # Full backup
  shichen export --format yaml --output shichen-backup.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format != "geojson" && format != "markdown" && format != "yaml" {
			return fmt.Errorf("unsupported format: %s (use 'geojson', 'markdown', or 'yaml')", format)
		}

		geometry, _ := cmd.Flags().GetString("geometry")
		if geometry != "points" && geometry != "line" {
			return fmt.Errorf("unsupported geometry: %s (use 'points' or 'line')", geometry)
		}

		since, _ := cmd.Flags().GetString("since")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		var sinceTime, fromTime, toTime time.Time
		var err error

		if since != "" {
			sinceTime, err = parseDuration(since)
			if err != nil {
				return fmt.Errorf("invalid --since value: %w", err)
			}
		}
		if from != "" {
			fromTime, err = parseDate(from)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
		}
		if to != "" {
			toTime, err = parseDate(to)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			// Set to end of day
			toTime = toTime.Add(24*time.Hour - time.Second)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")

		if format == "yaml" {
			return exportYAML(cmd, store, output)
		}

		positions, err := filterPositions(store, sinceTime, fromTime, toTime)
		if err != nil {
			return err
		}

		zone, err := zoneFunc()
		if err != nil {
			return err
		}
		if format == "markdown" {
			return writeExport(cmd, storage.ExportToMarkdown(positions, zone()), output, "markdown")
		}
		return exportGeoJSON(cmd, positions, geometry, zone(), output)
	},
}

func exportGeoJSON(cmd *cobra.Command, positions []*models.PositionRecord, geometry string, loc *time.Location, output string) error {
	if len(positions) == 0 {
		return fmt.Errorf("no positions found")
	}

	var fc *geojson.FeatureCollection
	if geometry == "line" {
		fc = geojson.ToLineFeatureCollection(positions)
	} else {
		fc = geojson.ToPointsFeatureCollection(positions, loc)
	}

	jsonBytes, err := fc.ToJSONIndent()
	if err != nil {
		return fmt.Errorf("failed to generate GeoJSON: %w", err)
	}
	return writeExport(cmd, append(jsonBytes, '\n'), output, fmt.Sprintf("%d positions", len(positions)))
}

func exportYAML(cmd *cobra.Command, store storage.Repository, output string) error {
	data, err := storage.ExportToYAML(store)
	if err != nil {
		return fmt.Errorf("failed to generate YAML: %w", err)
	}
	return writeExport(cmd, data, output, "YAML")
}

// writeExport writes data to output, or to stdout when output is empty.
func writeExport(cmd *cobra.Command, data []byte, output, what string) error {
	if output == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil { //nolint:gosec // 0644 is intentional for data export files
		return fmt.Errorf("failed to write file: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s to %s\n", what, output)
	return nil
}

// filterPositions returns matching positions in chronological order.
func filterPositions(store storage.PositionRepository, since, from, to time.Time) ([]*models.PositionRecord, error) {
	var (
		positions []*models.PositionRecord
		err       error
	)
	switch {
	case !since.IsZero():
		positions, err = store.ListPositions(since)
	case !from.IsZero() && !to.IsZero():
		positions, err = store.ListPositionsInRange(from, to)
	case !from.IsZero():
		positions, err = store.ListPositions(from)
	default:
		positions, err = store.ListPositions(time.Time{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	slices.Reverse(positions)
	return positions, nil
}

// parseDuration parses relative duration strings like "24h", "7d", "1w".
func parseDuration(s string) (time.Time, error) {
	matches := durationRegex.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("invalid duration format (use e.g., 24h, 7d, 1w)")
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid number in duration '%s': %w", s, err)
	}

	var duration time.Duration
	switch matches[2] {
	case "h":
		duration = time.Duration(num) * time.Hour
	case "d":
		duration = time.Duration(num) * 24 * time.Hour
	case "w":
		duration = time.Duration(num) * 7 * 24 * time.Hour
	case "m":
		duration = time.Duration(num) * 30 * 24 * time.Hour
	}

	return time.Now().Add(-duration), nil
}

// parseDate parses date strings in RFC3339 or YYYY-MM-DD format.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date format (use YYYY-MM-DD or RFC3339)")
}

func init() {
	exportCmd.Flags().StringP("format", "f", "geojson", "output format (geojson, markdown, yaml)")
	exportCmd.Flags().StringP("geometry", "g", "points", "geometry type (points, line)")
	exportCmd.Flags().String("since", "", "relative time filter (e.g., 24h, 7d, 1w)")
	exportCmd.Flags().String("from", "", "start date (YYYY-MM-DD or RFC3339)")
	exportCmd.Flags().String("to", "", "end date (YYYY-MM-DD or RFC3339)")
	exportCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	rootCmd.AddCommand(exportCmd)
}
