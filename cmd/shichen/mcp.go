// ABOUTME: MCP serve command
// ABOUTME: Starts the MCP server over stdio for AI agent integration

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/harper/shichen/internal/logger"
	"github.com/harper/shichen/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		stack, err := buildLocators(ctx, currentConfig(), logr)
		if err != nil {
			return err
		}
		defer func() { _ = stack.Close() }()

		prov, err := newProvider(stack, logr)
		if err != nil {
			return err
		}
		zone, err := zoneFunc()
		if err != nil {
			return err
		}

		opts := []mcp.Option{mcp.WithZone(zone)}
		if store, err := openStore(); err != nil {
			logger.Or(logr).Warn("history unavailable, recent_positions disabled", "err", err)
		} else {
			opts = append(opts, mcp.WithHistory(store))
		}

		return mcp.NewServer(prov, opts...).Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
