// ABOUTME: Root Cobra command and global flags
// ABOUTME: Loads .env and config, sets up logging, and opens the history store on demand

package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/shichen/internal/config"
	"github.com/harper/shichen/internal/logger"
	"github.com/harper/shichen/internal/storage"
	"github.com/spf13/cobra"
)

var (
	cfg  *config.Config
	repo storage.Repository
	logr *log.Logger

	flagBackend  string
	flagDataDir  string
	flagTimezone string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "shichen",
	Short: "True solar time and the twelve double hours",
	Long: `
███████╗██╗  ██╗██╗ ██████╗██╗  ██╗███████╗███╗   ██╗
██╔════╝██║  ██║██║██╔════╝██║  ██║██╔════╝████╗  ██║
███████╗███████║██║██║     ███████║█████╗  ██╔██╗ ██║
╚════██║██╔══██║██║██║     ██╔══██║██╔══╝  ██║╚██╗██║
███████║██║  ██║██║╚██████╗██║  ██║███████╗██║ ╚████║
╚══════╝╚═╝  ╚═╝╚═╝ ╚═════╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═══╝

     Local solar time and the earthly branch it falls in

Examples:
  shichen now
  shichen now --lng 116.40 --lat 39.90
  shichen hours --date 2026-06-21
  shichen watch --record
  shichen serve --listen :8642`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(".env"); err != nil {
			return err
		}
		logr = logger.Setup()
		if flagVerbose {
			logr.SetLevel(log.DebugLevel)
		}

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if flagBackend != "" {
			c.Backend = flagBackend
		}
		if flagDataDir != "" {
			c.DataDir = flagDataDir
		}
		if flagTimezone != "" {
			c.Timezone = flagTimezone
		}
		cfg = c
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if repo != nil {
			err := repo.Close()
			repo = nil
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "history backend (sqlite or badger)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.local/share/shichen)")
	rootCmd.PersistentFlags().StringVar(&flagTimezone, "tz", "", "IANA time zone overriding the system zone")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

// currentConfig returns the loaded config, or defaults when commands run
// without the root pre-run (as in tests).
func currentConfig() *config.Config {
	if cfg == nil {
		return &config.Config{}
	}
	return cfg
}

// openStore opens the configured history store once per invocation.
func openStore() (storage.Repository, error) {
	if repo != nil {
		return repo, nil
	}
	r, err := currentConfig().OpenStorage(logr)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	repo = r
	return repo, nil
}

// zoneFunc resolves the configured civil time zone.
func zoneFunc() (func() *time.Location, error) {
	loc, err := currentConfig().Location()
	if err != nil {
		return nil, err
	}
	return func() *time.Location { return loc }, nil
}
