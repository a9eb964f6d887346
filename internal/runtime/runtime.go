// Package runtime defines the boundary between the supervisor and
// whatever actually executes services. Implementations exist for the
// local Docker Engine (container services) and for plain child
// processes (command services); the supervisor picks one per service
// type and never looks behind the interface.
package runtime

import (
	"context"
	"fmt"

	"stackctl/internal/config"
	"stackctl/internal/volume"
)

// Handle identifies one started instance of a service within its
// runtime. For containers it is the container ID; for processes an
// opaque token issued by the runtime.
type Handle string

// Status reports whether an instance is still running, and its exit
// code once it is not.
type Status struct {
	Running  bool
	ExitCode int
}

// StartError wraps a failure to launch a service instance. Start
// failures feed the restart policy; they are never silently retried by
// the runtime itself.
type StartError struct {
	Service string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("starting service %q: %v", e.Service, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Runtime starts and stops service instances of one service type.
type Runtime interface {
	// Start launches the service with its resolved volume mounts and
	// returns a handle for later calls. Failures are *StartError.
	Start(ctx context.Context, spec config.ServiceSpec, mounts []volume.Mount) (Handle, error)

	// Stop terminates the instance. Stopping an instance that is
	// already gone is not an error.
	Stop(ctx context.Context, h Handle) error

	// Status reports whether the instance still runs. A handle whose
	// instance vanished entirely reports not running.
	Status(ctx context.Context, h Handle) (Status, error)
}

// Cleaner is implemented by runtimes that leave shared resources
// behind, such as the stack network. Teardown calls it after all
// services are stopped.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}
