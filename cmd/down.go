package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"stackctl/internal/config"
	"stackctl/internal/runtime/docker"
	"stackctl/internal/volume"
	"stackctl/pkg/logging"
)

// shutdownTimeout bounds the engine cleanup.
const shutdownTimeout = 60 * time.Second

var downPurge bool

func newDownCmd() *cobra.Command {
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Remove the stack's containers and network",
		Long: `Stops and removes every container the stack left on the Docker Engine,
along with the stack network. Persistent volumes survive so the next up
reuses their data; pass --purge to delete them too.

Command services run as children of stackctl up and end with it; down
deals with the engine-backed resources that outlive the supervisor.`,
		RunE: runDown,
	}
	downCmd.Flags().BoolVar(&downPurge, "purge", false, "Also delete the stack's persistent volumes")
	return downCmd
}

func runDown(cmd *cobra.Command, args []string) error {
	reg, err := config.Load(manifestPath)
	if err != nil {
		return err
	}
	logging.InitForCLI(logging.ParseLevel(logLevelFlag), os.Stderr)

	if !hasContainerServices(reg) {
		logging.Info(cliSubsystem, "Stack %q has no container services; nothing to remove", reg.StackName())
		return nil
	}

	dockerRT, err := docker.New(reg.StackName())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := dockerRT.Cleanup(ctx); err != nil {
		return err
	}
	logging.Info(cliSubsystem, "Removed containers and network of stack %q", reg.StackName())

	if downPurge {
		if err := volume.NewManager(reg, dockerRT).Purge(ctx); err != nil {
			return err
		}
		logging.Info(cliSubsystem, "Purged persistent volumes of stack %q", reg.StackName())
	}
	return nil
}

func hasContainerServices(reg *config.Registry) bool {
	for _, spec := range reg.Services() {
		if spec.Type == config.ServiceTypeContainer {
			return true
		}
	}
	return false
}
