package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"stackctl/internal/app"
)

var (
	upNoTUI       bool
	upWaitTimeout time.Duration
	upDataDir     string
)

func newUpCmd() *cobra.Command {
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Start the stack and supervise it until stopped",
		Long: `Starts every service of the manifest in dependency order, waits for
health checks to pass, and supervises the stack in the foreground.

By default an interactive dashboard shows per-service state and the
activity log; quitting the dashboard stops the stack. With --no-tui the
command logs to stderr, waits for convergence, and runs until
interrupted. The exit code then reports the outcome: 0 on a converged
run, 2 for manifest errors, 3 for dependency cycles, 4 when a service
failed permanently, 5 when convergence timed out.`,
		RunE: runUp,
	}
	upCmd.Flags().BoolVar(&upNoTUI, "no-tui", false, "Disable the dashboard and log to stderr instead")
	upCmd.Flags().DurationVar(&upWaitTimeout, "wait-timeout", 5*time.Minute, "How long to wait for stack convergence (with --no-tui)")
	upCmd.Flags().StringVar(&upDataDir, "runtime-data-dir", "", "Root for command-service state directories (overrides settings.dataDir)")
	return upCmd
}

func runUp(cmd *cobra.Command, args []string) error {
	application, err := app.New(app.NewConfig(manifestPath, logLevelFlag, upNoTUI, upWaitTimeout, upDataDir))
	if err != nil {
		return err
	}
	return application.Run(cmd.Context())
}
