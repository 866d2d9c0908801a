// ABOUTME: Watch command streaming solar time updates to the terminal
// ABOUTME: Optionally records positions and publishes snapshots to MQTT while running

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/harper/shichen/internal/logger"
	"github.com/harper/shichen/internal/solar"
	"github.com/harper/shichen/internal/ui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Stream solar time updates until interrupted",
	Long: `Print a line each minute and whenever the position changes.

With --record, positions of medium precision or better are saved to the
history store. When an MQTT broker is configured every update is also
published to it.

Examples:
  shichen watch
  shichen watch --record
  shichen watch --no-mqtt`,
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

		record, _ := cmd.Flags().GetBool("record")
		noMQTT, _ := cmd.Flags().GetBool("no-mqtt")
		svc, err := startServices(currentConfig(), stack, prov, record, !noMQTT)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		lines := make(chan string, 8)
		unsub := prov.Subscribe(func(data solar.SolarTimeData) {
			select {
			case lines <- formatWatchLine(data):
			default:
			}
		})

		err = printLines(ctx, out, lines)
		unsub()
		svc.Stop()
		logger.Or(logr).Info("watch stopped", svc.summary()...)
		return err
	},
}

// printLines writes queued lines until ctx ends.
func printLines(ctx context.Context, out io.Writer, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			if _, err := fmt.Fprintln(out, line); err != nil {
				return err
			}
		}
	}
}

// formatWatchLine renders one compact update line.
func formatWatchLine(data solar.SolarTimeData) string {
	info := solar.BranchAt(data.Shichen.Index)
	return fmt.Sprintf("%s  solar %s  %s  %s  %s",
		data.CivilTime.Format("15:04"),
		data.SolarTime.Format("15:04:05"),
		ui.FormatOffset(data.SolarOffsetMinutes),
		ui.FormatBranch(info),
		ui.FormatPrecision(data.Precision))
}

func init() {
	watchCmd.Flags().Bool("record", false, "save positions to the history store")
	watchCmd.Flags().Bool("no-mqtt", false, "do not publish even if a broker is configured")

	rootCmd.AddCommand(watchCmd)
}
