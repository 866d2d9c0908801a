// ABOUTME: Migration command for moving position history between storage backends
// ABOUTME: Supports sqlite-to-badger and badger-to-sqlite with safety checks

package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/shichen/internal/config"
	"github.com/harper/shichen/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate history between storage backends",
	Long: `Migrate all recorded positions from the currently configured backend to
a different backend.

Does NOT update the config file; verify the migration was successful then
update config.json manually.

Examples:
  shichen migrate --to badger
  shichen migrate --to sqlite --target-dir ~/shichen-sqlite
  shichen migrate --to badger --force`,
	RunE: runMigrate,
}

var (
	migrateTo        string
	migrateTargetDir string
	migrateForce     bool
)

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "target backend (sqlite or badger)")
	migrateCmd.Flags().StringVar(&migrateTargetDir, "target-dir", "", "target data directory (defaults to current data_dir)")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "allow writing into a non-empty target")
	_ = migrateCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	sourceBackend := c.GetBackend()
	targetBackend := migrateTo

	if targetBackend != storage.BackendSQLite && targetBackend != storage.BackendBadger {
		return fmt.Errorf("invalid target backend %q: must be %q or %q", targetBackend, storage.BackendSQLite, storage.BackendBadger)
	}
	if targetBackend == sourceBackend {
		return fmt.Errorf("target backend %q is the same as the current backend", targetBackend)
	}

	targetDataDir := c.GetDataDir()
	if migrateTargetDir != "" {
		targetDataDir = config.ExpandPath(migrateTargetDir)
	}

	// Only the backend's own file or directory matters; both can share a data dir.
	if targetBackend == storage.BackendBadger {
		nonEmpty, err := storage.IsDirNonEmpty(filepath.Join(targetDataDir, storage.BadgerDirName))
		if err != nil {
			return fmt.Errorf("check target directory: %w", err)
		}
		if nonEmpty && !migrateForce {
			return fmt.Errorf("target %q already holds badger data; use --force to write into it", targetDataDir)
		}
	}

	src, err := openStore()
	if err != nil {
		return fmt.Errorf("open source storage (%s): %w", sourceBackend, err)
	}

	dst, err := storage.Open(targetBackend, targetDataDir, logr)
	if err != nil {
		return fmt.Errorf("open target storage (%s): %w", targetBackend, err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: closing target storage: %v\n", cerr)
		}
	}()

	if targetBackend == storage.BackendSQLite && !migrateForce {
		existing, err := dst.ListPositions(time.Time{})
		if err != nil {
			return fmt.Errorf("check target storage: %w", err)
		}
		if len(existing) > 0 {
			return fmt.Errorf("target %q already holds %d positions; use --force to write into it", targetDataDir, len(existing))
		}
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, color.YellowString("Migrating position history:"))
	_, _ = fmt.Fprintf(out, "  Source:  %s (%s)\n", sourceBackend, c.GetDataDir())
	_, _ = fmt.Fprintf(out, "  Target:  %s (%s)\n\n", targetBackend, targetDataDir)

	summary, err := storage.MigrateData(src, dst)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	_, _ = fmt.Fprintln(out, color.GreenString("Migration complete!"))
	_, _ = fmt.Fprintf(out, "  Positions: %d\n\n", summary.Positions)
	_, _ = fmt.Fprintln(out, color.YellowString("Note: config.json was NOT updated. To switch to the new backend, edit:"))
	_, _ = fmt.Fprintf(out, "  %s\n", config.GetConfigPath())
	_, _ = fmt.Fprintf(out, "  Set \"backend\": %q", targetBackend)
	if migrateTargetDir != "" {
		_, _ = fmt.Fprintf(out, " and \"data_dir\": %q", migrateTargetDir)
	}
	_, _ = fmt.Fprintln(out)

	return nil
}
