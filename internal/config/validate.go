package config

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// ValidationError reports every problem found in a manifest, so a user
// can fix the file in one pass. Nothing is started when it is returned.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("invalid manifest: %s", e.Issues[0])
	}
	return fmt.Sprintf("invalid manifest: %d issues:\n  - %s",
		len(e.Issues), strings.Join(e.Issues, "\n  - "))
}

// Names must be safe to embed in container and volume names.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Registry is the validated, immutable set of service specs for one
// stack. It preserves manifest declaration order.
type Registry struct {
	name     string
	settings Settings
	specs    []ServiceSpec
	byName   map[string]int
}

// NewRegistry applies defaults to the manifest and validates it. All
// violations are collected into a single ValidationError.
func NewRegistry(m *Manifest) (*Registry, error) {
	applyDefaults(m)

	var issues []string
	addIssue := func(format string, args ...interface{}) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if len(m.Services) == 0 {
		addIssue("no services defined")
	}

	byName := make(map[string]int, len(m.Services))
	for i, svc := range m.Services {
		if svc.Name == "" {
			addIssue("service #%d has no name", i+1)
			continue
		}
		if !namePattern.MatchString(svc.Name) {
			addIssue("service %q: name must match %s", svc.Name, namePattern)
		}
		if _, dup := byName[svc.Name]; dup {
			addIssue("service %q declared more than once", svc.Name)
			continue
		}
		byName[svc.Name] = i
	}

	volumeOwners := make(map[string]string)
	for _, svc := range m.Services {
		if svc.Name == "" {
			continue
		}
		validateService(svc, byName, volumeOwners, addIssue)
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}

	return &Registry{
		name:     m.Name,
		settings: m.Settings,
		specs:    m.Services,
		byName:   byName,
	}, nil
}

func validateService(svc ServiceSpec, byName map[string]int, volumeOwners map[string]string, addIssue func(string, ...interface{})) {
	switch svc.Type {
	case ServiceTypeContainer:
		if svc.Image == "" {
			addIssue("service %q: container service requires an image", svc.Name)
		}
	case ServiceTypeCommand:
		if len(svc.Command) == 0 {
			addIssue("service %q: command service requires a command", svc.Name)
		}
		if svc.Image != "" {
			addIssue("service %q: command service must not set an image", svc.Name)
		}
	default:
		addIssue("service %q: unknown type %q", svc.Name, svc.Type)
	}

	seenDeps := make(map[string]bool, len(svc.DependsOn))
	for _, dep := range svc.DependsOn {
		if dep == svc.Name {
			addIssue("service %q depends on itself", svc.Name)
			continue
		}
		if _, ok := byName[dep]; !ok {
			addIssue("service %q depends on undeclared service %q", svc.Name, dep)
		}
		if seenDeps[dep] {
			addIssue("service %q lists dependency %q twice", svc.Name, dep)
		}
		seenDeps[dep] = true
	}

	for _, p := range svc.Ports {
		if !validPortMapping(p) {
			addIssue("service %q: invalid port mapping %q (want \"host:container\")", svc.Name, p)
		}
	}

	if len(svc.Volumes) > 0 && svc.Type == ServiceTypeCommand {
		addIssue("service %q: volumes require a container service", svc.Name)
	}
	for _, vol := range svc.Volumes {
		if vol.Name == "" {
			addIssue("service %q: volume with empty name", svc.Name)
			continue
		}
		if !namePattern.MatchString(vol.Name) {
			addIssue("service %q: volume name %q must match %s", svc.Name, vol.Name, namePattern)
		}
		if owner, taken := volumeOwners[vol.Name]; taken && owner != svc.Name {
			addIssue("volume %q is declared by both %q and %q; volumes belong to exactly one service", vol.Name, owner, svc.Name)
		}
		volumeOwners[vol.Name] = svc.Name
		if vol.MountPath == "" {
			addIssue("service %q: volume %q has no mountPath", svc.Name, vol.Name)
		} else if !path.IsAbs(vol.MountPath) {
			addIssue("service %q: volume %q mountPath must be absolute inside the container", svc.Name, vol.Name)
		}
	}

	if hc := svc.HealthCheck; hc != nil {
		validateHealthCheck(svc.Name, hc, addIssue)
	}

	switch svc.Restart.Policy {
	case RestartNever, RestartOnFailure, RestartAlways:
	default:
		addIssue("service %q: unknown restart policy %q", svc.Name, svc.Restart.Policy)
	}
	if svc.Restart.MaxRetries < 0 {
		addIssue("service %q: restart maxRetries must not be negative", svc.Name)
	}
}

func validateHealthCheck(svcName string, hc *HealthCheck, addIssue func(string, ...interface{})) {
	switch hc.Type {
	case CheckTypeTCP:
		if hc.Target == "" {
			addIssue("service %q: tcp health check requires a target address", svcName)
		}
	case CheckTypeHTTP:
		if hc.Target == "" {
			addIssue("service %q: http health check requires a target URL", svcName)
		} else if !strings.HasPrefix(hc.Target, "http://") && !strings.HasPrefix(hc.Target, "https://") {
			addIssue("service %q: http health check target %q must be an http(s) URL", svcName, hc.Target)
		}
	case CheckTypeCommand:
		if len(hc.Command) == 0 {
			addIssue("service %q: command health check requires a command", svcName)
		}
	default:
		addIssue("service %q: unknown health check type %q", svcName, hc.Type)
	}

	if hc.Interval.Std() <= 0 {
		addIssue("service %q: health check interval must be positive", svcName)
	}
	if hc.Timeout.Std() <= 0 {
		addIssue("service %q: health check timeout must be positive", svcName)
	}
	if hc.Retries < 1 {
		addIssue("service %q: health check retries must be at least 1", svcName)
	}
	if hc.GracePeriod.Std() < 0 {
		addIssue("service %q: health check gracePeriod must not be negative", svcName)
	}
}

func validPortMapping(p string) bool {
	parts := strings.Split(p, ":")
	if len(parts) != 2 {
		return false
	}
	for _, part := range parts {
		if part == "" || strings.TrimLeft(part, "0123456789") != "" {
			return false
		}
	}
	return true
}

// StackName returns the stack's name.
func (r *Registry) StackName() string { return r.name }

// Settings returns the stack-wide settings.
func (r *Registry) Settings() Settings { return r.settings }

// Services returns the specs in declaration order. The slice is a copy;
// callers cannot mutate the registry through it.
func (r *Registry) Services() []ServiceSpec {
	out := make([]ServiceSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// Get looks up a spec by service name.
func (r *Registry) Get(name string) (ServiceSpec, bool) {
	i, ok := r.byName[name]
	if !ok {
		return ServiceSpec{}, false
	}
	return r.specs[i], true
}

// Names returns the service names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.specs))
	for i, svc := range r.specs {
		out[i] = svc.Name
	}
	return out
}

// Len returns the number of services.
func (r *Registry) Len() int { return len(r.specs) }
