package app

import (
	"stackctl/internal/config"
	"stackctl/internal/runtime"
	"stackctl/internal/runtime/docker"
	"stackctl/internal/runtime/local"
	"stackctl/internal/supervisor"
	"stackctl/internal/volume"
)

// buildSupervisor wires up the runtimes the manifest actually needs.
// The Docker client is only dialed when a container service exists, so
// command-only stacks run without a Docker Engine.
func buildSupervisor(reg *config.Registry, dataDir string) (*supervisor.Supervisor, error) {
	runtimes := make(map[config.ServiceType]runtime.Runtime)
	var volumes *volume.Manager

	for _, spec := range reg.Services() {
		if _, done := runtimes[spec.Type]; done {
			continue
		}
		switch spec.Type {
		case config.ServiceTypeContainer:
			dockerRT, err := docker.New(reg.StackName())
			if err != nil {
				return nil, err
			}
			runtimes[config.ServiceTypeContainer] = dockerRT
			volumes = volume.NewManager(reg, dockerRT)
		case config.ServiceTypeCommand:
			runtimes[config.ServiceTypeCommand] = local.New(dataDir)
		}
	}

	return supervisor.New(reg, runtimes, volumes, supervisor.Options{})
}
