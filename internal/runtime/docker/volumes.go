package docker

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/client"
)

// VolumeName returns the engine-side name for a logical volume.
func (r *Runtime) VolumeName(logical string) string {
	return fmt.Sprintf("%s-%s", r.stack, logical)
}

// Ensure creates the named volume if it does not exist yet and returns
// its engine-side name. Existing volumes, including those from earlier
// runs, are reused as-is so their data survives.
func (r *Runtime) Ensure(ctx context.Context, logical string) (string, error) {
	name := r.VolumeName(logical)

	_, err := r.cli.VolumeInspect(ctx, name, client.VolumeInspectOptions{})
	if err == nil {
		return name, nil
	}
	if !errdefs.IsNotFound(err) {
		return "", fmt.Errorf("inspect volume %q: %w", name, err)
	}

	_, err = r.cli.VolumeCreate(ctx, client.VolumeCreateOptions{
		Name: name,
		Labels: map[string]string{
			LabelStack:  r.stack,
			LabelRun:    r.run.String(),
			LabelVolume: logical,
		},
	})
	if err != nil {
		// Created concurrently is fine. Rather than pattern match the
		// conflict error, re-check inspect.
		if _, ie := r.cli.VolumeInspect(ctx, name, client.VolumeInspectOptions{}); ie == nil {
			return name, nil
		}
		return "", fmt.Errorf("create volume %q: %w", name, err)
	}
	return name, nil
}

// Remove deletes the named volume. A volume that is already gone is
// not an error.
func (r *Runtime) Remove(ctx context.Context, logical string) error {
	name := r.VolumeName(logical)
	if _, err := r.cli.VolumeRemove(ctx, name, client.VolumeRemoveOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove volume %q: %w", name, err)
	}
	return nil
}
