package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"stackctl/internal/config"
	"stackctl/internal/dependency"
	"stackctl/internal/supervisor"
)

// Exit codes, chosen so scripts can tell outcomes apart. Anything
// unclassified exits 1.
const (
	exitOK         = 0
	exitGeneral    = 1
	exitValidation = 2
	exitCycle      = 3
	exitConverge   = 4
	exitTimeout    = 5
)

const cliSubsystem = "CLI"

var (
	logLevelFlag string
	manifestPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stackctl",
	Short: "Bring a declared service stack to a healthy state and keep it there",
	Long: `stackctl reads a stack manifest (stack.yaml), starts its services in
dependency order across the Docker Engine and local processes, probes
them until every one is healthy, and supervises them with per-service
restart policies until you stop the stack.`,
	// SilenceUsage is set to true to prevent printing usage message on
	// errors handled by us (e.g. invalid manifests, failed convergence)
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). The process exit code
// classifies the failure so scripts can react to it.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "stackctl version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		// Cobra already printed the error, we just classify it.
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the documented process exit code.
func exitCode(err error) int {
	var (
		validationErr *config.ValidationError
		cycleErr      *dependency.CycleError
		convergeErr   *supervisor.ConvergenceError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &validationErr):
		return exitValidation
	case errors.As(err, &cycleErr):
		return exitCycle
	case errors.As(err, &convergeErr):
		return exitConverge
	case errors.Is(err, context.DeadlineExceeded):
		return exitTimeout
	default:
		return exitGeneral
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log verbosity: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "file", "f", "stack.yaml", "Path to the stack manifest")

	rootCmd.AddCommand(newUpCmd())
	rootCmd.AddCommand(newDownCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
