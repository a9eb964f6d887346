// Package supervisor is the control loop of the stack. It starts
// services in dependency order, gates each service on its dependencies'
// health, probes running services, applies restart policies with capped
// exponential backoff, and reports per-service state at any time.
//
// Each service is owned by exactly one lifecycle goroutine; all state
// transitions for a service happen there. Cross-service reads, such as
// a dependent checking its dependencies' health, are snapshot reads
// that never block another service's transition.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"stackctl/internal/config"
	"stackctl/internal/dependency"
	"stackctl/internal/probe"
	"stackctl/internal/runtime"
	"stackctl/internal/volume"
	"stackctl/pkg/logging"
)

const logSubsystem = "Supervisor"

// eventBufferSize bounds the transition event channel. When the
// consumer falls behind, events are dropped rather than stalling a
// lifecycle goroutine.
const eventBufferSize = 100

// stopTimeout bounds runtime Stop calls made while shutting a service
// down, independent of the supervisor's start context.
const stopTimeout = 30 * time.Second

// Options tunes supervisor timing. The zero value gets sensible
// defaults from New; tests shrink the intervals to keep runs fast.
type Options struct {
	// BackoffBase is the delay before the first restart. It doubles per
	// consecutive restart up to BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// DependencyPollInterval is how often a pending service re-checks
	// its dependencies' health.
	DependencyPollInterval time.Duration

	// StatusPollInterval is how often a running service's process is
	// checked for an unexpected exit.
	StatusPollInterval time.Duration

	// ConvergencePollInterval is how often AwaitConverged re-evaluates
	// the stack.
	ConvergencePollInterval time.Duration

	// NewChecker builds the probe checker for a health check. Defaults
	// to probe.NewChecker.
	NewChecker func(*config.HealthCheck) (probe.Checker, error)
}

func (o *Options) applyDefaults(settings config.Settings) {
	if o.BackoffBase <= 0 {
		o.BackoffBase = settings.BackoffBase.Std()
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = settings.BackoffCap.Std()
	}
	if o.DependencyPollInterval <= 0 {
		o.DependencyPollInterval = 100 * time.Millisecond
	}
	if o.StatusPollInterval <= 0 {
		o.StatusPollInterval = time.Second
	}
	if o.ConvergencePollInterval <= 0 {
		o.ConvergencePollInterval = 50 * time.Millisecond
	}
	if o.NewChecker == nil {
		o.NewChecker = probe.NewChecker
	}
}

// Supervisor brings a validated stack to a converged state and keeps
// it there. Create one with New, launch it with Start, and observe it
// through Snapshot, Ready, AwaitConverged and Subscribe. A Supervisor
// manages a single run; it cannot be restarted after StopAll or
// Teardown.
type Supervisor struct {
	reg      *config.Registry
	graph    *dependency.Graph
	order    []string
	runtimes map[config.ServiceType]runtime.Runtime
	volumes  *volume.Manager
	opts     Options

	cells map[string]*serviceCell

	events     chan Event
	eventsOnce sync.Once

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// New validates the stack's dependency graph and prepares a supervisor
// for it. A dependency cycle is reported here, before anything starts,
// as a *dependency.CycleError. Every service type in the registry must
// have a runtime; stacks with volume bindings must pass a volume
// manager.
func New(reg *config.Registry, runtimes map[config.ServiceType]runtime.Runtime, volumes *volume.Manager, opts Options) (*Supervisor, error) {
	graph, order, err := buildGraph(reg)
	if err != nil {
		return nil, err
	}

	for _, spec := range reg.Services() {
		if _, ok := runtimes[spec.Type]; !ok {
			return nil, fmt.Errorf("no runtime registered for service type %q (service %q)", spec.Type, spec.Name)
		}
		if len(spec.Volumes) > 0 && volumes == nil {
			return nil, fmt.Errorf("service %q declares volumes but no volume manager is configured", spec.Name)
		}
	}

	opts.applyDefaults(reg.Settings())

	cells := make(map[string]*serviceCell, reg.Len())
	for _, spec := range reg.Services() {
		cells[spec.Name] = newServiceCell(spec)
	}

	return &Supervisor{
		reg:      reg,
		graph:    graph,
		order:    order,
		runtimes: runtimes,
		volumes:  volumes,
		opts:     opts,
		cells:    cells,
		events:   make(chan Event, eventBufferSize),
	}, nil
}

// Order returns the resolved start order, dependencies first. Services
// with no ordering constraint keep their declaration order.
func (s *Supervisor) Order() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Start launches one lifecycle goroutine per service and returns
// immediately. Convergence is observed through AwaitConverged or
// Snapshot. Cancelling ctx stops every service.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("supervisor already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	logging.Info(logSubsystem, "Starting stack %q with %d services, order: %v", s.reg.StackName(), len(s.order), s.order)

	for _, name := range s.order {
		cell := s.cells[name]
		s.wg.Add(1)
		go s.runService(cell)
	}
	return nil
}

// Snapshot returns the current state of every service in declaration
// order. The returned slice is a copy; it never changes under the
// caller.
func (s *Supervisor) Snapshot() []ServiceStatus {
	out := make([]ServiceStatus, 0, len(s.cells))
	for _, name := range s.reg.Names() {
		out = append(out, s.cells[name].status())
	}
	return out
}

// Ready reports whether every service is Healthy.
func (s *Supervisor) Ready() bool {
	for _, cell := range s.cells {
		if cell.currentState() != StateHealthy {
			return false
		}
	}
	return true
}

// Subscribe returns the transition event stream. It is intended for a
// single consumer; the channel closes once StopAll or Teardown has
// finished. Events are dropped, with a warning, if the consumer falls
// behind.
func (s *Supervisor) Subscribe() <-chan Event {
	return s.events
}

// AwaitConverged blocks until every service is Healthy, a service
// fails permanently, or ctx ends. A permanent failure is reported as a
// *ConvergenceError naming the failed services and the dependents that
// can never start because of them.
func (s *Supervisor) AwaitConverged(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.ConvergencePollInterval)
	defer ticker.Stop()

	for {
		if s.Ready() {
			return nil
		}
		if failed := s.failedServices(); len(failed) > 0 {
			return &ConvergenceError{
				Failed:  failed,
				Blocked: s.blockedBy(failed),
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for stack convergence: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Stop stops one service and, first, every service that depends on it,
// directly or not. Stopped services stay stopped; the restart policy
// does not apply.
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	if _, ok := s.cells[name]; !ok {
		return fmt.Errorf("unknown service %q", name)
	}

	affected := map[string]bool{name: true}
	s.collectDependents(name, affected)

	// Reverse start order stops dependents before their dependencies.
	for i := len(s.order) - 1; i >= 0; i-- {
		svc := s.order[i]
		if !affected[svc] {
			continue
		}
		if err := s.stopCell(ctx, s.cells[svc]); err != nil {
			return err
		}
	}
	return nil
}

// Restart stops and starts a running service without consuming its
// restart budget and without backoff.
func (s *Supervisor) Restart(name string) error {
	cell, ok := s.cells[name]
	if !ok {
		return fmt.Errorf("unknown service %q", name)
	}
	switch cell.currentState() {
	case StateAwaitingHealth, StateHealthy, StateUnhealthy:
		cell.requestRestart()
		return nil
	default:
		return fmt.Errorf("service %q is not running", name)
	}
}

// StopAll stops every service in reverse start order and closes the
// event stream. It returns once every lifecycle goroutine has
// finished, or earlier with ctx's error.
func (s *Supervisor) StopAll(ctx context.Context) error {
	for i := len(s.order) - 1; i >= 0; i-- {
		if err := s.stopCell(ctx, s.cells[s.order[i]]); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
		s.eventsOnce.Do(func() { close(s.events) })
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Teardown stops the whole stack and removes runtime resources left
// behind, containers and the stack network included. With purge, the
// stack's persistent volumes are deleted as well; without it they
// survive for the next run.
func (s *Supervisor) Teardown(ctx context.Context, purge bool) error {
	var errs []error

	if err := s.StopAll(ctx); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[runtime.Runtime]bool)
	for _, rt := range s.runtimes {
		if seen[rt] {
			continue
		}
		seen[rt] = true
		if cleaner, ok := rt.(runtime.Cleaner); ok {
			if err := cleaner.Cleanup(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if purge && s.volumes != nil {
		logging.Info(logSubsystem, "Purging persistent volumes of stack %q", s.reg.StackName())
		if err := s.volumes.Purge(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// stopCell requests a stop and waits for the cell's goroutine to wind
// down. A cell that never left Pending has no process to stop, and its
// goroutine may already be gone; it is moved to Stopped directly.
func (s *Supervisor) stopCell(ctx context.Context, cell *serviceCell) error {
	cell.requestStop()

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if started {
		select {
		case <-cell.done:
		case <-ctx.Done():
			return fmt.Errorf("stopping service %q: %w", cell.spec.Name, ctx.Err())
		}
	}

	if cell.currentState() == StatePending {
		s.transition(cell, StateStopped, nil)
	}
	return nil
}

func (s *Supervisor) collectDependents(name string, into map[string]bool) {
	for _, dep := range s.graph.Dependents(dependency.NodeID(name)) {
		svc := string(dep)
		if into[svc] {
			continue
		}
		into[svc] = true
		s.collectDependents(svc, into)
	}
}

func (s *Supervisor) failedServices() []string {
	var failed []string
	for _, name := range s.reg.Names() {
		if s.cells[name].currentState() == StateFailed {
			failed = append(failed, name)
		}
	}
	return failed
}

// blockedBy returns the pending services that can never start because
// a transitive dependency failed. Derived from the graph, not from the
// cells, so the report is complete even while the blockage is still
// propagating to the dependents' goroutines.
func (s *Supervisor) blockedBy(failed []string) []string {
	affected := make(map[string]bool)
	for _, name := range failed {
		s.collectDependents(name, affected)
	}

	var blocked []string
	for _, name := range s.reg.Names() {
		if affected[name] && s.cells[name].currentState() == StatePending {
			blocked = append(blocked, name)
		}
	}
	return blocked
}

// transition moves a cell to a new state and publishes the event.
// Terminal states are sticky: once a service is Stopped or Failed it
// never moves again.
func (s *Supervisor) transition(cell *serviceCell, to State, cause error) {
	cell.mu.Lock()
	from := cell.state
	if from == to || from.Terminal() {
		cell.mu.Unlock()
		return
	}
	cell.state = to
	cell.since = time.Now()
	switch {
	case to == StateHealthy:
		// A healthy service starts its restart accounting over; the
		// counter tracks consecutive restarts, not lifetime ones.
		cell.lastErr = nil
		cell.restarts = 0
	case cause != nil && (to == StateUnhealthy || to == StateFailed):
		cell.lastErr = cause
	}
	restarts := cell.restarts
	cell.mu.Unlock()

	ev := Event{
		ID:           uuid.New(),
		Service:      cell.spec.Name,
		Old:          from,
		New:          to,
		RestartCount: restarts,
		Time:         time.Now(),
	}
	if cause != nil {
		ev.Cause = cause.Error()
	}
	s.emit(ev)
	s.logTransition(ev)
}

func (s *Supervisor) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		logging.Warn(logSubsystem, "Event channel full, dropping %s -> %s for %s", ev.Old, ev.New, ev.Service)
	}
}

func (s *Supervisor) logTransition(ev Event) {
	switch ev.New {
	case StateHealthy:
		logging.Info(logSubsystem, "Service %s is healthy", ev.Service)
	case StateUnhealthy:
		logging.Warn(logSubsystem, "Service %s is unhealthy: %s", ev.Service, ev.Cause)
	case StateFailed:
		logging.Error(logSubsystem, errors.New(ev.Cause), "Service %s failed permanently", ev.Service)
	case StateRestarting:
		logging.Info(logSubsystem, "Service %s restarting (restart %d)", ev.Service, ev.RestartCount)
	case StateStopped:
		logging.Info(logSubsystem, "Service %s stopped", ev.Service)
	default:
		logging.Debug(logSubsystem, "Service %s: %s -> %s", ev.Service, ev.Old, ev.New)
	}
}

// ResolveOrder computes the dependency-ordered start sequence for a
// registry without building a supervisor. A dependency cycle is
// reported as a *dependency.CycleError.
func ResolveOrder(reg *config.Registry) ([]string, error) {
	_, order, err := buildGraph(reg)
	return order, err
}

func buildGraph(reg *config.Registry) (*dependency.Graph, []string, error) {
	graph := dependency.New()
	for _, spec := range reg.Services() {
		if err := graph.AddNode(dependency.Node{
			ID:        dependency.NodeID(spec.Name),
			DependsOn: toNodeIDs(spec.DependsOn),
		}); err != nil {
			return nil, nil, err
		}
	}
	resolved, err := graph.Resolve()
	if err != nil {
		return nil, nil, err
	}
	order := make([]string, len(resolved))
	for i, id := range resolved {
		order[i] = string(id)
	}
	return graph, order, nil
}

func toNodeIDs(names []string) []dependency.NodeID {
	ids := make([]dependency.NodeID, len(names))
	for i, n := range names {
		ids[i] = dependency.NodeID(n)
	}
	return ids
}
