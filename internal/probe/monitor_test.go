package probe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"stackctl/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedChecker returns the scripted errors in order, then repeats the
// last one. It counts how often it was called.
type scriptedChecker struct {
	results []error
	calls   atomic.Int32
}

func (s *scriptedChecker) Check(ctx context.Context) error {
	n := int(s.calls.Add(1)) - 1
	if len(s.results) == 0 {
		return nil
	}
	if n >= len(s.results) {
		n = len(s.results) - 1
	}
	return s.results[n]
}

func testHealthCheck(retries int, grace time.Duration) *config.HealthCheck {
	return &config.HealthCheck{
		Type:        config.CheckTypeTCP,
		Target:      "localhost:1",
		Interval:    config.Duration(10 * time.Millisecond),
		Timeout:     config.Duration(time.Second),
		Retries:     retries,
		GracePeriod: config.Duration(grace),
	}
}

func TestMonitor_NoCheckDuringGrace(t *testing.T) {
	checker := &scriptedChecker{}
	m := NewMonitor(testHealthCheck(3, time.Hour), checker, time.Now())

	for i := 0; i < 5; i++ {
		assert.Equal(t, StatusPending, m.Probe(context.Background()))
	}
	assert.Equal(t, int32(0), checker.calls.Load(), "no check may run during the grace period")
	assert.Equal(t, 0, m.ChecksIssued())
	assert.True(t, m.InGrace(time.Now()))
}

func TestMonitor_FirstSuccessIsHealthy(t *testing.T) {
	checker := &scriptedChecker{}
	m := NewMonitor(testHealthCheck(3, 0), checker, time.Now())

	assert.Equal(t, StatusPending, m.Status())
	assert.Equal(t, StatusHealthy, m.Probe(context.Background()))
	assert.NoError(t, m.LastError())
}

func TestMonitor_GraceExpiresThenChecksRun(t *testing.T) {
	checker := &scriptedChecker{}
	m := NewMonitor(testHealthCheck(3, 30*time.Millisecond), checker, time.Now())

	assert.Equal(t, StatusPending, m.Probe(context.Background()))
	assert.Equal(t, int32(0), checker.calls.Load())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StatusHealthy, m.Probe(context.Background()))
	assert.Equal(t, int32(1), checker.calls.Load())
}

func TestMonitor_DebouncesFailures(t *testing.T) {
	boom := errors.New("connection refused")
	checker := &scriptedChecker{results: []error{nil, boom, boom, nil, boom, boom, boom}}
	m := NewMonitor(testHealthCheck(3, 0), checker, time.Now())

	ctx := context.Background()
	assert.Equal(t, StatusHealthy, m.Probe(ctx)) // success
	assert.Equal(t, StatusHealthy, m.Probe(ctx)) // failure 1 of 3
	assert.Equal(t, StatusHealthy, m.Probe(ctx)) // failure 2 of 3
	assert.Equal(t, StatusHealthy, m.Probe(ctx)) // success resets the count
	assert.Equal(t, StatusHealthy, m.Probe(ctx)) // failure 1 of 3
	assert.Equal(t, StatusHealthy, m.Probe(ctx)) // failure 2 of 3
	assert.Equal(t, StatusUnhealthy, m.Probe(ctx), "third consecutive failure flips the verdict")
	assert.ErrorContains(t, m.LastError(), "connection refused")
}

func TestMonitor_NeverHealthyFlipsAfterRetries(t *testing.T) {
	boom := errors.New("no listener")
	checker := &scriptedChecker{results: []error{boom}}
	m := NewMonitor(testHealthCheck(2, 0), checker, time.Now())

	ctx := context.Background()
	assert.Equal(t, StatusPending, m.Probe(ctx))
	assert.Equal(t, StatusUnhealthy, m.Probe(ctx))
}

func TestMonitor_RecoveryAfterUnhealthy(t *testing.T) {
	boom := errors.New("down")
	checker := &scriptedChecker{results: []error{boom, boom, nil}}
	m := NewMonitor(testHealthCheck(2, 0), checker, time.Now())

	ctx := context.Background()
	m.Probe(ctx)
	assert.Equal(t, StatusUnhealthy, m.Probe(ctx))
	assert.Equal(t, StatusHealthy, m.Probe(ctx))
	assert.NoError(t, m.LastError())
}

// slowChecker blocks until its context is cancelled.
type slowChecker struct{}

func (slowChecker) Check(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestMonitor_CheckBoundedByTimeout(t *testing.T) {
	hc := testHealthCheck(1, 0)
	hc.Timeout = config.Duration(50 * time.Millisecond)
	m := NewMonitor(hc, slowChecker{}, time.Now())

	start := time.Now()
	status := m.Probe(context.Background())
	elapsed := time.Since(start)

	assert.Equal(t, StatusUnhealthy, status, "a timed out check is a failed check")
	require.Less(t, elapsed, 500*time.Millisecond)
	assert.ErrorIs(t, m.LastError(), context.DeadlineExceeded)
}

func TestMonitor_IntervalFromConfig(t *testing.T) {
	m := NewMonitor(testHealthCheck(3, 0), &scriptedChecker{}, time.Now())
	assert.Equal(t, 10*time.Millisecond, m.Interval())
}
