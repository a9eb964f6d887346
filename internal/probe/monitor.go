package probe

import (
	"context"
	"sync"
	"time"

	"stackctl/internal/config"
)

// Status is the health verdict for a service.
type Status string

const (
	// StatusPending means no verdict yet: the grace period is still
	// running or the first successful check has not happened.
	StatusPending Status = "pending"
	StatusHealthy Status = "healthy"
	// StatusUnhealthy is only reached after the configured number of
	// consecutive failures.
	StatusUnhealthy Status = "unhealthy"
)

// Monitor tracks probe outcomes for one start attempt of one service.
// A restart gets a fresh Monitor so the grace period and failure count
// start over.
//
// Verdict rules: during the grace period the status is Pending and no
// check is issued at all. The first successful check flips to Healthy.
// A single failure never changes the verdict; only the configured number
// of consecutive failures flips to Unhealthy, and any success in between
// resets the count.
type Monitor struct {
	checker    Checker
	interval   time.Duration
	timeout    time.Duration
	retries    int
	graceUntil time.Time

	mu           sync.Mutex
	status       Status
	consecFails  int
	lastErr      error
	checksIssued int
}

// NewMonitor builds a monitor for a service started at startedAt. The
// health check config must be fully populated (defaults applied).
func NewMonitor(hc *config.HealthCheck, checker Checker, startedAt time.Time) *Monitor {
	return &Monitor{
		checker:    checker,
		interval:   hc.Interval.Std(),
		timeout:    hc.Timeout.Std(),
		retries:    hc.Retries,
		graceUntil: startedAt.Add(hc.GracePeriod.Std()),
		status:     StatusPending,
	}
}

// Interval returns the configured time between checks.
func (m *Monitor) Interval() time.Duration { return m.interval }

// Probe runs one check cycle and returns the resulting status. During
// the grace period it returns Pending without touching the checker. The
// check itself is bounded by the configured timeout, so Probe never
// blocks longer than that.
func (m *Monitor) Probe(ctx context.Context) Status {
	if time.Now().Before(m.graceUntil) {
		return m.Status()
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.checker.Check(checkCtx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.checksIssued++
	if err != nil {
		m.consecFails++
		m.lastErr = err
		if m.consecFails >= m.retries {
			m.status = StatusUnhealthy
		}
	} else {
		m.consecFails = 0
		m.lastErr = nil
		m.status = StatusHealthy
	}
	return m.status
}

// Status returns the current verdict without running a check.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastError returns the error of the most recent failed check, or nil
// after a success.
func (m *Monitor) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// ChecksIssued returns how many checks have actually run.
func (m *Monitor) ChecksIssued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checksIssued
}

// InGrace reports whether the grace period is still running at now.
func (m *Monitor) InGrace(now time.Time) bool {
	return now.Before(m.graceUntil)
}
