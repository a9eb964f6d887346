package supervisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is a service's lifecycle phase.
type State string

const (
	// StatePending means the service has not started yet, usually
	// because a dependency is not healthy.
	StatePending State = "pending"
	// StateStarting means the start action has been handed to the
	// runtime.
	StateStarting State = "starting"
	// StateAwaitingHealth means the service is running but its probe
	// has not succeeded yet.
	StateAwaitingHealth State = "awaiting-health"
	// StateHealthy means the service is running and its probe passes.
	StateHealthy State = "healthy"
	// StateUnhealthy means the probe failed its debounce threshold or
	// the process exited unexpectedly.
	StateUnhealthy State = "unhealthy"
	// StateRestarting means the supervisor is waiting out a restart
	// backoff before starting the service again.
	StateRestarting State = "restarting"
	// StateStopped means the service was stopped on request. Terminal.
	StateStopped State = "stopped"
	// StateFailed means the restart policy is exhausted or forbids a
	// restart. Terminal.
	StateFailed State = "failed"
)

// Terminal reports whether a service in this state will never move
// again.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// Event records one state transition.
type Event struct {
	ID           uuid.UUID
	Service      string
	Old          State
	New          State
	RestartCount int
	Cause        string
	Time         time.Time
}

// ServiceStatus is one row of a supervisor snapshot.
type ServiceStatus struct {
	Name      string
	State     State
	Restarts  int
	LastError error
	Since     time.Time
}

// ConvergenceError reports that the stack cannot reach an all-healthy
// state: at least one service failed permanently, and any service
// depending on a failed one can never start.
type ConvergenceError struct {
	Failed  []string
	Blocked []string
}

func (e *ConvergenceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stack cannot converge: %s failed permanently", quoteAll(e.Failed))
	if len(e.Blocked) > 0 {
		fmt.Fprintf(&b, "; %s blocked waiting on failed dependencies", quoteAll(e.Blocked))
	}
	return b.String()
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, ", ")
}
