// ABOUTME: Hours command printing the twelve double hours for one day
// ABOUTME: Windows are shown in civil time, shifted by the solar offset at a longitude

package main

import (
	"fmt"
	"time"

	"github.com/harper/shichen/internal/geo"
	"github.com/harper/shichen/internal/solar"
	"github.com/harper/shichen/internal/ui"
	"github.com/spf13/cobra"
)

var hoursCmd = &cobra.Command{
	Use:   "hours",
	Short: "Show the double hour table for a day",
	Long: `Show when each of the twelve double hours starts and ends in civil
time at a given longitude. Defaults to today at the longitude implied by
your time zone's current UTC offset.

Examples:
  shichen hours
  shichen hours --lng 116.40
  shichen hours --date 2026-06-21 --lng 87.62`,
	RunE: func(cmd *cobra.Command, args []string) error {
		zone, err := zoneFunc()
		if err != nil {
			return err
		}
		now := time.Now().In(zone())

		date := now
		if d, _ := cmd.Flags().GetString("date"); d != "" {
			t, err := time.ParseInLocation("2006-01-02", d, zone())
			if err != nil {
				return fmt.Errorf("invalid --date value (use YYYY-MM-DD): %w", err)
			}
			date = t
		}

		lng := geo.TimezoneEstimate(date).Longitude
		if cmd.Flags().Changed("lng") {
			lng, _ = cmd.Flags().GetFloat64("lng")
			if lng < -180 || lng > 180 {
				return fmt.Errorf("longitude must be between -180 and 180, got %f", lng)
			}
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s at %.2f°\n\n", date.Format("Monday, 2006-01-02"), lng)
		_, _ = fmt.Fprint(cmd.OutOrStdout(), ui.FormatDayTable(solar.DayTable(date, lng), now))
		return nil
	},
}

func init() {
	hoursCmd.Flags().String("date", "", "day to show (YYYY-MM-DD, default today)")
	hoursCmd.Flags().Float64("lng", 0, "longitude in degrees east")

	rootCmd.AddCommand(hoursCmd)
}
