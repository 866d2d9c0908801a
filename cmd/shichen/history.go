// ABOUTME: History command listing recorded positions with their solar time
// ABOUTME: Newest first, filtered by a relative duration

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harper/shichen/internal/ui"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"h", "timeline"},
	Short:   "List recorded positions",
	Long: `List positions recorded by 'shichen watch --record' or 'shichen serve',
newest first, with the solar time and double hour at each.

Examples:
  shichen history
  shichen history --since 7d`,
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetString("since")
		sinceTime, err := parseDuration(since)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		positions, err := store.ListPositions(sinceTime)
		if err != nil {
			return fmt.Errorf("failed to list positions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(positions) == 0 {
			_, _ = fmt.Fprintln(out, "No positions recorded. Use 'shichen watch --record' to start.")
			return nil
		}

		zone, err := zoneFunc()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, color.New(color.Bold).Sprintf("%d positions since %s", len(positions), since))
		for _, pos := range positions {
			_, _ = fmt.Fprintln(out, ui.FormatPositionForTimeline(pos, zone()))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().String("since", "24h", "relative time filter (e.g., 24h, 7d, 1w)")

	rootCmd.AddCommand(historyCmd)
}
