// Package docker runs container services on the local Docker Engine.
// Containers, the stack network and named volumes are labeled with the
// stack name so teardown can find them even across supervisor runs.
package docker

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/google/uuid"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"

	"stackctl/internal/config"
	"stackctl/internal/runtime"
	"stackctl/internal/volume"
	"stackctl/pkg/logging"
)

const logSubsystem = "DockerRuntime"

// Label keys attached to every resource this runtime creates.
const (
	LabelStack   = "stackctl.stack"
	LabelRun     = "stackctl.run"
	LabelService = "stackctl.service"
	LabelVolume  = "stackctl.volume"
)

// Runtime runs container services on the local Docker Engine.
type Runtime struct {
	cli   *client.Client
	stack string
	run   uuid.UUID
}

// New connects to the engine using the environment (DOCKER_HOST and
// friends). Every resource it creates is scoped to the given stack
// name; run identifies this supervisor run in labels.
func New(stack string) (*Runtime, error) {
	cli, err := client.New(client.FromEnv)
	if err != nil {
		return nil, fmt.Errorf("connecting to Docker Engine: %w", err)
	}
	return &Runtime{cli: cli, stack: stack, run: uuid.New()}, nil
}

// ContainerName returns the engine-side name for a service.
func (r *Runtime) ContainerName(service string) string {
	return fmt.Sprintf("%s-%s", r.stack, service)
}

func (r *Runtime) networkName() string {
	return fmt.Sprintf("stackctl-%s", r.stack)
}

func (r *Runtime) labels(service string) map[string]string {
	return map[string]string{
		LabelStack:   r.stack,
		LabelRun:     r.run.String(),
		LabelService: service,
	}
}

// Start creates and starts the service's container. A container left
// over from a previous run is removed first, so Start always yields a
// fresh instance. The engine-side restart policy stays disabled; the
// supervisor owns restarts.
func (r *Runtime) Start(ctx context.Context, spec config.ServiceSpec, mounts []volume.Mount) (runtime.Handle, error) {
	if err := r.ensureNetwork(ctx); err != nil {
		return "", &runtime.StartError{Service: spec.Name, Err: err}
	}

	name := r.ContainerName(spec.Name)
	if err := r.removeExisting(ctx, name); err != nil {
		return "", &runtime.StartError{Service: spec.Name, Err: err}
	}

	exposed, portMap, err := buildPortBindings(spec.Ports)
	if err != nil {
		return "", &runtime.StartError{Service: spec.Name, Err: err}
	}

	containerMounts := make([]mount.Mount, 0, len(mounts))
	for _, m := range mounts {
		containerMounts = append(containerMounts, mount.Mount{
			Type:   mount.TypeVolume,
			Source: m.Source,
			Target: m.Target,
		})
	}

	cCfg := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Command,
		Entrypoint:   spec.Entrypoint,
		Env:          buildEnv(spec.Environment),
		Labels:       r.labels(spec.Name),
		ExposedPorts: exposed,
	}
	hCfg := &container.HostConfig{
		Mounts:       containerMounts,
		PortBindings: portMap,
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyDisabled,
		},
	}
	nCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			r.networkName(): {Aliases: []string{spec.Name}},
		},
	}

	containerID := ""
	created, err := r.cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:           cCfg,
		HostConfig:       hCfg,
		NetworkingConfig: nCfg,
		Name:             name,
		Image:            spec.Image,
	})
	if err != nil {
		// Race-safe: if something else created it, inspect and proceed.
		inspected, ie := r.cli.ContainerInspect(ctx, name, client.ContainerInspectOptions{})
		if ie != nil {
			return "", &runtime.StartError{Service: spec.Name, Err: fmt.Errorf("create container %q: %w", name, err)}
		}
		containerID = inspected.Container.ID
	} else {
		containerID = created.ID
	}

	if _, err := r.cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return "", &runtime.StartError{Service: spec.Name, Err: fmt.Errorf("start container %q: %w", name, err)}
	}

	logging.Debug(logSubsystem, "Started container %s (%s) for service %s", name, shortID(containerID), spec.Name)
	go r.streamLogs(spec.Name, containerID)

	return runtime.Handle(containerID), nil
}

// Stop stops the container and removes it, keeping volumes. A container
// that is already gone is not an error.
func (r *Runtime) Stop(ctx context.Context, h runtime.Handle) error {
	return r.stopByID(ctx, string(h))
}

func (r *Runtime) stopByID(ctx context.Context, id string) error {
	if _, err := r.cli.ContainerStop(ctx, id, client.ContainerStopOptions{}); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("stop container %s: %w", shortID(id), err)
	}
	if _, err := r.cli.ContainerRemove(ctx, id, client.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: false,
	}); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %s: %w", shortID(id), err)
	}
	return nil
}

// Status inspects the container. A vanished container reports as not
// running with exit code -1.
func (r *Runtime) Status(ctx context.Context, h runtime.Handle) (runtime.Status, error) {
	inspect, err := r.cli.ContainerInspect(ctx, string(h), client.ContainerInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return runtime.Status{Running: false, ExitCode: -1}, nil
		}
		return runtime.Status{}, fmt.Errorf("inspect container %s: %w", shortID(string(h)), err)
	}
	state := inspect.Container.State
	if state == nil {
		return runtime.Status{Running: false, ExitCode: -1}, nil
	}
	return runtime.Status{Running: state.Running, ExitCode: state.ExitCode}, nil
}

// Cleanup removes every container of the stack and the stack network.
// It is used by teardown to catch instances from earlier runs that this
// supervisor never started.
func (r *Runtime) Cleanup(ctx context.Context) error {
	f := make(client.Filters).Add("label", LabelStack+"="+r.stack)

	containers, err := r.cli.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return fmt.Errorf("list stack containers: %w", err)
	}
	for _, c := range containers.Items {
		if err := r.stopByID(ctx, c.ID); err != nil {
			return err
		}
	}

	nets, err := r.cli.NetworkList(ctx, client.NetworkListOptions{Filters: f})
	if err != nil {
		return fmt.Errorf("list stack networks: %w", err)
	}
	for _, n := range nets.Items {
		if _, err := r.cli.NetworkRemove(ctx, n.ID, client.NetworkRemoveOptions{}); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("remove network %q: %w", n.Name, err)
		}
	}
	return nil
}

func (r *Runtime) ensureNetwork(ctx context.Context) error {
	name := r.networkName()
	_, err := r.cli.NetworkInspect(ctx, name, client.NetworkInspectOptions{})
	if err == nil {
		return nil
	}
	_, err = r.cli.NetworkCreate(ctx, name, client.NetworkCreateOptions{
		Labels: map[string]string{
			LabelStack: r.stack,
			LabelRun:   r.run.String(),
		},
	})
	if err != nil {
		// Race-safe: re-inspect before failing.
		if _, ie := r.cli.NetworkInspect(ctx, name, client.NetworkInspectOptions{}); ie != nil {
			return fmt.Errorf("create network %q: %w", name, err)
		}
	}
	return nil
}

func (r *Runtime) removeExisting(ctx context.Context, name string) error {
	_, err := r.cli.ContainerInspect(ctx, name, client.ContainerInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("inspect container %q: %w", name, err)
	}
	_, _ = r.cli.ContainerStop(ctx, name, client.ContainerStopOptions{})
	if _, err := r.cli.ContainerRemove(ctx, name, client.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: false,
	}); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove existing container %q: %w", name, err)
	}
	return nil
}

func buildEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}

// buildPortBindings turns "host:container" mappings into the engine's
// exposed-port set and host bindings. TCP only.
func buildPortBindings(mappings []string) (network.PortSet, network.PortMap, error) {
	if len(mappings) == 0 {
		return nil, nil, nil
	}

	exposed := network.PortSet{}
	portMap := network.PortMap{}
	hostIP := netip.MustParseAddr("0.0.0.0")

	for _, mapping := range mappings {
		hostPort, containerPort, err := parsePortMapping(mapping)
		if err != nil {
			return nil, nil, err
		}
		port, ok := network.PortFrom(containerPort, "tcp")
		if !ok {
			return nil, nil, fmt.Errorf("invalid container port in %q", mapping)
		}
		exposed[port] = struct{}{}
		portMap[port] = append(portMap[port], network.PortBinding{
			HostIP:   hostIP,
			HostPort: strconv.Itoa(int(hostPort)),
		})
	}
	return exposed, portMap, nil
}

func parsePortMapping(mapping string) (hostPort, containerPort uint16, err error) {
	host, cont, found := strings.Cut(mapping, ":")
	if !found {
		return 0, 0, fmt.Errorf("invalid port mapping %q (want \"host:container\")", mapping)
	}
	h, err := strconv.ParseUint(host, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid host port in %q: %w", mapping, err)
	}
	c, err := strconv.ParseUint(cont, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid container port in %q: %w", mapping, err)
	}
	return uint16(h), uint16(c), nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
