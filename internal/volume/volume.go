// Package volume manages the persistent named volumes of a stack.
// Volumes outlive the services using them: resolving one creates it on
// first use and is a no-op afterwards, restarts and failures never
// touch them, and only an explicit teardown with purge destroys data.
package volume

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"stackctl/internal/config"
	"stackctl/pkg/logging"
)

const logSubsystem = "VolumeManager"

// Mount is a resolved volume attachment handed to the runtime.
type Mount struct {
	Volume string // logical name from the manifest
	Source string // backend identifier, e.g. the engine volume name
	Target string // absolute mount path inside the container
}

// Backend creates and destroys the physical resource behind a named
// volume. Both operations are idempotent.
type Backend interface {
	// Ensure creates the volume if it does not exist and returns its
	// source identifier.
	Ensure(ctx context.Context, name string) (string, error)
	// Remove destroys the volume and its data. Removing a volume that
	// does not exist is not an error.
	Remove(ctx context.Context, name string) error
}

// Manager resolves manifest volume bindings through a Backend and knows
// every volume the stack declares, so purge works even when nothing was
// resolved in this run.
type Manager struct {
	backend  Backend
	declared []config.VolumeBinding

	mu       sync.Mutex
	resolved map[string]string // logical name -> source
}

// NewManager collects the volume declarations of every service in the
// registry.
func NewManager(reg *config.Registry, backend Backend) *Manager {
	var declared []config.VolumeBinding
	seen := make(map[string]bool)
	for _, svc := range reg.Services() {
		for _, binding := range svc.Volumes {
			if seen[binding.Name] {
				continue
			}
			seen[binding.Name] = true
			declared = append(declared, binding)
		}
	}
	return &Manager{
		backend:  backend,
		declared: declared,
		resolved: make(map[string]string),
	}
}

// Resolve ensures the volume behind the binding exists and returns the
// mount for it. Calling Resolve again for the same binding returns the
// same mount without touching the backend.
func (m *Manager) Resolve(ctx context.Context, binding config.VolumeBinding) (Mount, error) {
	m.mu.Lock()
	source, ok := m.resolved[binding.Name]
	m.mu.Unlock()
	if ok {
		return Mount{Volume: binding.Name, Source: source, Target: binding.MountPath}, nil
	}

	source, err := m.backend.Ensure(ctx, binding.Name)
	if err != nil {
		return Mount{}, fmt.Errorf("resolving volume %q: %w", binding.Name, err)
	}
	logging.Debug(logSubsystem, "Resolved volume %s -> %s", binding.Name, source)

	m.mu.Lock()
	m.resolved[binding.Name] = source
	m.mu.Unlock()

	return Mount{Volume: binding.Name, Source: source, Target: binding.MountPath}, nil
}

// ResolveAll resolves every volume of one service in declaration order.
func (m *Manager) ResolveAll(ctx context.Context, spec config.ServiceSpec) ([]Mount, error) {
	if len(spec.Volumes) == 0 {
		return nil, nil
	}
	mounts := make([]Mount, 0, len(spec.Volumes))
	for _, binding := range spec.Volumes {
		mount, err := m.Resolve(ctx, binding)
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, mount)
	}
	return mounts, nil
}

// Purge destroys every volume the stack declares, resolved in this run
// or not. It keeps going on individual failures and reports them all.
func (m *Manager) Purge(ctx context.Context) error {
	var errs []error
	for _, binding := range m.declared {
		if err := m.backend.Remove(ctx, binding.Name); err != nil {
			errs = append(errs, fmt.Errorf("purging volume %q: %w", binding.Name, err))
			continue
		}
		logging.Info(logSubsystem, "Purged volume %s", binding.Name)
		m.mu.Lock()
		delete(m.resolved, binding.Name)
		m.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Declared returns the logical names of every volume in the stack, in
// declaration order.
func (m *Manager) Declared() []string {
	out := make([]string, len(m.declared))
	for i, binding := range m.declared {
		out[i] = binding.Name
	}
	return out
}
