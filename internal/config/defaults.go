package config

import "time"

// DefaultStackName is used when the manifest does not name the stack.
const DefaultStackName = "stack"

// Supervisor and probe defaults applied to fields the manifest leaves unset.
const (
	DefaultBackoffBase       = 500 * time.Millisecond
	DefaultBackoffCap        = 30 * time.Second
	DefaultProbeInterval     = 10 * time.Second
	DefaultProbeTimeout      = 5 * time.Second
	DefaultProbeRetries      = 3
	DefaultRestartPolicy     = RestartOnFailure
	DefaultRestartMaxRetries = 3
)

// applyDefaults fills unset manifest fields in place. It runs before
// validation so validation only ever sees fully populated specs.
func applyDefaults(m *Manifest) {
	if m.Name == "" {
		m.Name = DefaultStackName
	}
	if m.Settings.BackoffBase.IsZero() {
		m.Settings.BackoffBase = Duration(DefaultBackoffBase)
	}
	if m.Settings.BackoffCap.IsZero() {
		m.Settings.BackoffCap = Duration(DefaultBackoffCap)
	}
	if m.Settings.Probe.Interval.IsZero() {
		m.Settings.Probe.Interval = Duration(DefaultProbeInterval)
	}
	if m.Settings.Probe.Timeout.IsZero() {
		m.Settings.Probe.Timeout = Duration(DefaultProbeTimeout)
	}
	if m.Settings.Probe.Retries == 0 {
		m.Settings.Probe.Retries = DefaultProbeRetries
	}

	for i := range m.Services {
		svc := &m.Services[i]
		if svc.Type == "" {
			if svc.Image != "" {
				svc.Type = ServiceTypeContainer
			} else {
				svc.Type = ServiceTypeCommand
			}
		}
		if svc.Restart.Policy == "" {
			svc.Restart.Policy = DefaultRestartPolicy
		}
		if svc.Restart.Policy == RestartOnFailure && svc.Restart.MaxRetries == 0 {
			svc.Restart.MaxRetries = DefaultRestartMaxRetries
		}
		if hc := svc.HealthCheck; hc != nil {
			if hc.Interval.IsZero() {
				hc.Interval = m.Settings.Probe.Interval
			}
			if hc.Timeout.IsZero() {
				hc.Timeout = m.Settings.Probe.Timeout
			}
			if hc.Retries == 0 {
				hc.Retries = m.Settings.Probe.Retries
			}
			if hc.GracePeriod.IsZero() && !m.Settings.Probe.GracePeriod.IsZero() {
				hc.GracePeriod = m.Settings.Probe.GracePeriod
			}
		}
	}
}
