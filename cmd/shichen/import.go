// ABOUTME: Import command for restoring position history from a YAML backup
// ABOUTME: Restores records as-is, without coordinate deduplication

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harper/shichen/internal/storage"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import position history from a YAML backup",
	Long: `Import positions from a YAML backup file created with
'shichen export --format yaml'.

WARNING: This adds to existing history, it does not replace it.

Examples:
  shichen import shichen-backup.yaml
  shichen import ~/backups/shichen-20260314.yaml --confirm`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		if confirm, _ := cmd.Flags().GetBool("confirm"); !confirm {
			if !askYesNo(cmd, fmt.Sprintf("Import data from '%s'? [y/N] ", filename)) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Canceled.")
				return nil
			}
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		n, err := storage.ImportFromYAML(store, data)
		if err != nil {
			return fmt.Errorf("failed to import after %d positions: %w", n, err)
		}

		positions, _ := store.ListPositions(time.Time{})

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Import complete"))
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %d imported, %d positions in history\n", n, len(positions))
		return nil
	},
}

// askYesNo prompts on the command's output and reads the answer from its input.
func askYesNo(cmd *cobra.Command, prompt string) bool {
	_, _ = fmt.Fprint(cmd.OutOrStdout(), prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func init() {
	importCmd.Flags().Bool("confirm", false, "skip confirmation prompt")

	rootCmd.AddCommand(importCmd)
}
