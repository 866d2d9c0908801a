// ABOUTME: Status command listing every configured locator and its state
// ABOUTME: Can request location permission before reporting

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harper/shichen/internal/ui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show locator status",
	Long: `Show each configured locator, its permission state, availability, and
current precision. The active locator is marked.

Examples:
  shichen status
  shichen status --request`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := buildLocators(cmd.Context(), currentConfig(), logr)
		if err != nil {
			return err
		}
		defer func() { _ = stack.Close() }()

		if request, _ := cmd.Flags().GetBool("request"); request {
			state, err := stack.composite.RequestPermission(cmd.Context())
			if err != nil {
				return fmt.Errorf("permission request failed: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Permission: %s\n\n", state)
		}

		out := cmd.OutOrStdout()
		active := stack.composite.Best()
		for _, l := range stack.composite.Locators() {
			marker := "  "
			if active != nil && l.ID() == active.ID() {
				marker = color.GreenString("▶ ")
			}
			_, _ = fmt.Fprintf(out, "%s%s\n", marker, ui.FormatStatus(l.Name(), l.Status()))
		}
		_, _ = fmt.Fprintf(out, "\n  %s\n", ui.FormatStatus(stack.composite.Name(), stack.composite.Status()))
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("request", false, "request location permission first")

	rootCmd.AddCommand(statusCmd)
}
