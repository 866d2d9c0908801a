// ABOUTME: Serve command running the HTTP and WebSocket API
// ABOUTME: Records history and publishes to MQTT alongside the server

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/harper/shichen/internal/logger"
	"github.com/harper/shichen/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve solar time over HTTP and WebSocket",
	Long: `Start the HTTP API. Endpoints include /api/solar-time, /api/shichen,
/api/shichen/table, /api/locator/status, /api/history and the /ws live
stream.

Examples:
  shichen serve
  shichen serve --listen :8642 --no-record`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		c := currentConfig()
		listen := c.GetHTTPListen()
		if l, _ := cmd.Flags().GetString("listen"); l != "" {
			listen = l
		}

		stack, err := buildLocators(ctx, c, logr)
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
		store, err := openStore()
		if err != nil {
			return err
		}

		noRecord, _ := cmd.Flags().GetBool("no-record")
		noMQTT, _ := cmd.Flags().GetBool("no-mqtt")
		svc, err := startServices(c, stack, prov, !noRecord, !noMQTT)
		if err != nil {
			return err
		}
		defer func() {
			svc.Stop()
			logger.Or(logr).Info("server stopped", svc.summary()...)
		}()

		srv := server.New(server.Config{
			Listen:   listen,
			Provider: prov,
			Locator:  stack.composite,
			Repo:     store,
			Zone:     zone,
			Logger:   logr,
		})
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default from config, 127.0.0.1:8642)")
	serveCmd.Flags().Bool("no-record", false, "do not save positions to the history store")
	serveCmd.Flags().Bool("no-mqtt", false, "do not publish even if a broker is configured")

	rootCmd.AddCommand(serveCmd)
}
