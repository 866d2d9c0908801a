// ABOUTME: Prune command deleting old positions from the history store
// ABOUTME: Asks for confirmation unless --confirm is given

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete recorded positions older than a duration",
	Long: `Delete recorded positions older than the given relative duration.

Examples:
  shichen prune --older-than 30d
  shichen prune --older-than 1w --confirm`,
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetString("older-than")
		cutoff, err := parseDuration(olderThan)
		if err != nil {
			return fmt.Errorf("invalid --older-than value: %w", err)
		}

		if confirm, _ := cmd.Flags().GetBool("confirm"); !confirm {
			prompt := fmt.Sprintf("Delete positions recorded before %s? [y/N] ", cutoff.Format("2006-01-02 15:04"))
			if !askYesNo(cmd, prompt) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Canceled.")
				return nil
			}
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		n, err := store.DeletePositionsBefore(cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune: %w", err)
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Pruned %d positions", n))
		return nil
	},
}

func init() {
	pruneCmd.Flags().String("older-than", "30d", "delete positions older than this (e.g., 30d, 1w)")
	pruneCmd.Flags().Bool("confirm", false, "skip confirmation prompt")

	rootCmd.AddCommand(pruneCmd)
}
