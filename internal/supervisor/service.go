package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stackctl/internal/config"
	"stackctl/internal/probe"
	"stackctl/internal/runtime"
	"stackctl/internal/volume"
	"stackctl/pkg/logging"
)

var errStopRequested = errors.New("stop requested")

// serviceCell carries one service's mutable state. Transitions are
// applied only by the service's own lifecycle goroutine; everything
// else takes snapshot reads through the mutex.
type serviceCell struct {
	spec config.ServiceSpec

	mu       sync.Mutex
	state    State
	restarts int
	lastErr  error
	since    time.Time
	blocked  bool

	stopCh    chan struct{}
	stopOnce  sync.Once
	restartCh chan struct{}
	done      chan struct{}
}

func newServiceCell(spec config.ServiceSpec) *serviceCell {
	return &serviceCell{
		spec:      spec,
		state:     StatePending,
		since:     time.Now(),
		stopCh:    make(chan struct{}),
		restartCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (c *serviceCell) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *serviceCell) status() ServiceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ServiceStatus{
		Name:      c.spec.Name,
		State:     c.state,
		Restarts:  c.restarts,
		LastError: c.lastErr,
		Since:     c.since,
	}
}

// setBlocked parks a pending service that can never start because a
// dependency reached a terminal state. The state stays Pending; the
// cause shows up in snapshots.
func (c *serviceCell) setBlocked(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocked = true
	c.lastErr = cause
}

func (c *serviceCell) isBlocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocked
}

func (c *serviceCell) blockedCause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *serviceCell) requestStop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *serviceCell) requestRestart() {
	select {
	case c.restartCh <- struct{}{}:
	default:
	}
}

// superviseAction tells runService what to do after one supervision
// round.
type superviseAction int

const (
	actionExit superviseAction = iota
	actionRestart
)

// watchOutcome is why the watch loop of a running instance returned.
type watchOutcome int

const (
	watchStop watchOutcome = iota
	watchManualRestart
	watchFailure
)

// runService owns one service from Pending to a terminal state.
func (s *Supervisor) runService(cell *serviceCell) {
	defer s.wg.Done()
	defer close(cell.done)

	if err := s.waitForDependencies(cell); err != nil {
		if errors.Is(err, errStopRequested) {
			s.transition(cell, StateStopped, nil)
			return
		}
		cell.setBlocked(err)
		logging.Warn(logSubsystem, "Service %s will never start: %v", cell.spec.Name, err)
		return
	}

	for {
		if s.superviseOnce(cell) == actionExit {
			return
		}
	}
}

// waitForDependencies blocks until every dependency is Healthy. It
// fails fast when a dependency reaches a terminal state or is itself
// blocked, since waiting further could never succeed.
func (s *Supervisor) waitForDependencies(cell *serviceCell) error {
	deps := cell.spec.DependsOn
	if len(deps) == 0 {
		return nil
	}

	ticker := time.NewTicker(s.opts.DependencyPollInterval)
	defer ticker.Stop()

	for {
		ready := true
		for _, dep := range deps {
			depCell := s.cells[dep]
			state := depCell.currentState()
			switch {
			case state == StateHealthy:
			case state.Terminal():
				return fmt.Errorf("dependency %q %s", dep, state)
			case depCell.isBlocked():
				return fmt.Errorf("dependency %q blocked: %v", dep, depCell.blockedCause())
			default:
				ready = false
			}
		}
		if ready {
			return nil
		}

		select {
		case <-cell.stopCh:
			return errStopRequested
		case <-s.ctx.Done():
			return errStopRequested
		case <-ticker.C:
		}
	}
}

// superviseOnce runs one start-to-outcome round: start the instance,
// watch it, and decide between exiting and restarting.
func (s *Supervisor) superviseOnce(cell *serviceCell) superviseAction {
	spec := cell.spec
	rt := s.runtimes[spec.Type]

	// Drop a manual restart request left over from a previous round.
	select {
	case <-cell.restartCh:
	default:
	}

	s.transition(cell, StateStarting, nil)

	var mounts []volume.Mount
	if len(spec.Volumes) > 0 {
		var err error
		mounts, err = s.volumes.ResolveAll(s.ctx, spec)
		if err != nil {
			return s.handleFailure(cell, err)
		}
	}

	handle, err := rt.Start(s.ctx, spec, mounts)
	if err != nil {
		return s.handleFailure(cell, err)
	}

	var monitor *probe.Monitor
	if spec.HealthCheck != nil {
		checker, err := s.opts.NewChecker(spec.HealthCheck)
		if err != nil {
			s.stopInstance(cell, rt, handle)
			return s.handleFailure(cell, fmt.Errorf("building health check: %w", err))
		}
		monitor = probe.NewMonitor(spec.HealthCheck, checker, time.Now())
		s.transition(cell, StateAwaitingHealth, nil)
	} else {
		// No probe configured: a running instance counts as healthy.
		s.transition(cell, StateHealthy, nil)
	}

	outcome, cause := s.watch(cell, rt, handle, monitor)
	switch outcome {
	case watchStop:
		s.stopInstance(cell, rt, handle)
		s.transition(cell, StateStopped, nil)
		return actionExit
	case watchManualRestart:
		s.stopInstance(cell, rt, handle)
		s.transition(cell, StateRestarting, errors.New("restart requested"))
		return actionRestart
	default:
		s.stopInstance(cell, rt, handle)
		return s.handleFailure(cell, cause)
	}
}

// watch follows a running instance until it is stopped, asked to
// restart, fails its probe, or its process exits.
func (s *Supervisor) watch(cell *serviceCell, rt runtime.Runtime, handle runtime.Handle, monitor *probe.Monitor) (watchOutcome, error) {
	statusTicker := time.NewTicker(s.opts.StatusPollInterval)
	defer statusTicker.Stop()

	var probeC <-chan time.Time
	if monitor != nil {
		probeTicker := time.NewTicker(monitor.Interval())
		defer probeTicker.Stop()
		probeC = probeTicker.C
	}

	for {
		select {
		case <-cell.stopCh:
			return watchStop, nil
		case <-s.ctx.Done():
			return watchStop, nil
		case <-cell.restartCh:
			return watchManualRestart, nil

		case <-statusTicker.C:
			st, err := rt.Status(s.ctx, handle)
			if err != nil {
				logging.Debug(logSubsystem, "Status check for %s failed: %v", cell.spec.Name, err)
				continue
			}
			if !st.Running {
				return watchFailure, fmt.Errorf("process exited with code %d", st.ExitCode)
			}

		case <-probeC:
			switch monitor.Probe(s.ctx) {
			case probe.StatusHealthy:
				s.transition(cell, StateHealthy, nil)
			case probe.StatusUnhealthy:
				err := monitor.LastError()
				if err == nil {
					err = errors.New("check failed")
				}
				return watchFailure, fmt.Errorf("health check: %w", err)
			case probe.StatusPending:
				// Still inside the grace period.
			}
		}
	}
}

// handleFailure applies the restart policy after a failure. It either
// parks the service in Failed or waits out the backoff and asks for
// another round. Stop requests pre-empt the backoff.
func (s *Supervisor) handleFailure(cell *serviceCell, cause error) superviseAction {
	spec := cell.spec
	s.transition(cell, StateUnhealthy, cause)

	policy := spec.Restart.Policy
	if policy == config.RestartNever {
		s.transition(cell, StateFailed, cause)
		return actionExit
	}

	cell.mu.Lock()
	if policy == config.RestartOnFailure && cell.restarts >= spec.Restart.MaxRetries {
		restarts := cell.restarts
		cell.mu.Unlock()
		s.transition(cell, StateFailed, fmt.Errorf("restart budget exhausted after %d restarts: %w", restarts, cause))
		return actionExit
	}
	cell.restarts++
	attempt := cell.restarts
	cell.mu.Unlock()

	s.transition(cell, StateRestarting, cause)

	delay := backoffDelay(s.opts.BackoffBase, s.opts.BackoffCap, attempt)
	logging.Debug(logSubsystem, "Service %s backing off %s before restart %d", spec.Name, delay, attempt)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-cell.stopCh:
		s.transition(cell, StateStopped, nil)
		return actionExit
	case <-s.ctx.Done():
		s.transition(cell, StateStopped, nil)
		return actionExit
	case <-timer.C:
		return actionRestart
	}
}

// stopInstance stops a runtime instance with its own deadline, so
// shutdown works even when the supervisor's context is already gone.
func (s *Supervisor) stopInstance(cell *serviceCell, rt runtime.Runtime, handle runtime.Handle) {
	if handle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := rt.Stop(ctx, handle); err != nil {
		logging.Warn(logSubsystem, "Stopping instance of %s: %v", cell.spec.Name, err)
	}
}

// backoffDelay returns the delay before restart number attempt,
// doubling from base and never exceeding limit. The sequence is
// monotonically non-decreasing.
func backoffDelay(base, limit time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}
