// ABOUTME: Now command printing the current true solar time and double hour
// ABOUTME: Uses the locator stack unless a longitude is given on the command line

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harper/shichen/internal/models"
	"github.com/harper/shichen/internal/solar"
	"github.com/harper/shichen/internal/ui"
	"github.com/spf13/cobra"
)

var nowCmd = &cobra.Command{
	Use:     "now",
	Aliases: []string{"n"},
	Short:   "Show true solar time and the current double hour",
	Long: `Show the local mean solar time for your position and the earthly
branch it falls in.

Without --lng the best available locator is used (GPS, then GeoIP, then
the time zone estimate).

Examples:
  shichen now
  shichen now --lng 121.47 --lat 31.23
  shichen now --lng 75.99 --at 2026-03-14T12:00:00+08:00
  shichen now --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		zone, err := zoneFunc()
		if err != nil {
			return err
		}

		civil := time.Now().In(zone())
		if at, _ := cmd.Flags().GetString("at"); at != "" {
			t, err := parseDate(at)
			if err != nil {
				return fmt.Errorf("invalid --at value: %w", err)
			}
			civil = t.In(zone())
		}

		pos, err := resolvePosition(cmd, civil)
		if err != nil {
			return err
		}
		data := solar.Compute(civil, pos)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			out, err := json.MarshalIndent(data, "", "  ")
			if err != nil {
				return fmt.Errorf("encode solar time: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		_, _ = fmt.Fprint(cmd.OutOrStdout(), ui.FormatSolarTime(data))
		return nil
	},
}

// resolvePosition builds a manual position from --lng/--lat or asks the
// locator stack for a one-shot fix.
func resolvePosition(cmd *cobra.Command, at time.Time) (models.GeoPosition, error) {
	if cmd.Flags().Changed("lng") {
		lng, _ := cmd.Flags().GetFloat64("lng")
		pos := models.GeoPosition{
			Longitude: lng,
			Precision: models.PrecisionLow,
			Timestamp: at,
			Source:    "manual",
		}
		if cmd.Flags().Changed("lat") {
			pos.Latitude, _ = cmd.Flags().GetFloat64("lat")
			pos.Precision = models.PrecisionHigh
		}
		if err := pos.Validate(); err != nil {
			return models.GeoPosition{}, err
		}
		return pos, nil
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	stack, err := buildLocators(ctx, currentConfig(), logr)
	if err != nil {
		return models.GeoPosition{}, err
	}
	defer func() { _ = stack.Close() }()

	pos, err := stack.composite.CurrentPosition(ctx)
	if err != nil {
		return models.GeoPosition{}, fmt.Errorf("failed to locate: %w", err)
	}
	return pos, nil
}

func init() {
	nowCmd.Flags().Float64("lng", 0, "longitude in degrees east")
	nowCmd.Flags().Float64("lat", 0, "latitude in degrees north (needs --lng)")
	nowCmd.Flags().String("at", "", "civil time to convert (RFC3339 or YYYY-MM-DD)")
	nowCmd.Flags().Bool("json", false, "print the full result as JSON")
	nowCmd.Flags().Duration("timeout", 10*time.Second, "how long to wait for a position")

	rootCmd.AddCommand(nowCmd)
}
