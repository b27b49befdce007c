// Monitor command: prints host CPU and memory use until interrupted.
package main

import (
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shonas301/plutarch/internal/monitor"
)

var flagMonitorInterval time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show CPU and memory usage of this host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return monitor.Run(ctx, cmd.OutOrStdout(), monitor.HostSampler{}, flagMonitorInterval)
	},
}

func init() {
	monitorCmd.Flags().DurationVar(&flagMonitorInterval, "interval", time.Second, "sampling interval")
}
