package config

// ServiceType defines how a service is executed.
type ServiceType string

const (
	// ServiceTypeContainer runs the service as a container on the local
	// Docker Engine.
	ServiceTypeContainer ServiceType = "container"
	// ServiceTypeCommand runs the service as a local child process.
	ServiceTypeCommand ServiceType = "command"
)

// CheckType defines the mechanism used to probe a service's health.
type CheckType string

const (
	CheckTypeTCP     CheckType = "tcp"
	CheckTypeHTTP    CheckType = "http"
	CheckTypeCommand CheckType = "command"
)

// RestartPolicy controls what the supervisor does when a service fails.
type RestartPolicy string

const (
	RestartNever     RestartPolicy = "never"
	RestartOnFailure RestartPolicy = "on-failure"
	RestartAlways    RestartPolicy = "always"
)

// Manifest is the top-level structure of a stack manifest file.
type Manifest struct {
	Name     string        `yaml:"name,omitempty"`     // Stack name, scopes container/volume names (default: "stack")
	Settings Settings      `yaml:"settings,omitempty"` // Stack-wide tunables
	Services []ServiceSpec `yaml:"services"`           // Declaration order is preserved and meaningful
}

// Settings holds stack-wide defaults and supervisor tunables.
type Settings struct {
	DataDir     string        `yaml:"dataDir,omitempty"`     // Root for command-service state directories
	BackoffBase Duration      `yaml:"backoffBase,omitempty"` // First restart delay (default: 500ms)
	BackoffCap  Duration      `yaml:"backoffCap,omitempty"`  // Upper bound for restart delays (default: 30s)
	Probe       ProbeDefaults `yaml:"probe,omitempty"`       // Defaults applied to per-service health checks
}

// ProbeDefaults fills in health check fields a service leaves unset.
type ProbeDefaults struct {
	Interval    Duration `yaml:"interval,omitempty"`    // Default: 10s
	Timeout     Duration `yaml:"timeout,omitempty"`     // Default: 5s
	Retries     int      `yaml:"retries,omitempty"`     // Consecutive failures before unhealthy (default: 3)
	GracePeriod Duration `yaml:"gracePeriod,omitempty"` // No checks during this window after start (default: 0)
}

// ServiceSpec declares a single service of the stack.
type ServiceSpec struct {
	Name        string            `yaml:"name"`                  // Unique within the stack
	Type        ServiceType       `yaml:"type,omitempty"`        // Inferred from image/command when omitted
	Image       string            `yaml:"image,omitempty"`       // Container image, e.g. "postgres:16"
	Command     []string          `yaml:"command,omitempty"`     // Command and args; overrides the image CMD for containers
	Entrypoint  []string          `yaml:"entrypoint,omitempty"`  // Optional container entrypoint override
	WorkDir     string            `yaml:"workDir,omitempty"`     // Working directory for command services
	Environment map[string]string `yaml:"environment,omitempty"` // Values support ${VAR} and ${VAR:-default} expansion
	Ports       []string          `yaml:"ports,omitempty"`       // Port mappings, e.g. ["5432:5432"] (host:container)
	Volumes     []VolumeBinding   `yaml:"volumes,omitempty"`     // Persistent volumes owned by this service
	DependsOn   []string          `yaml:"dependsOn,omitempty"`   // Services that must be healthy before this one starts
	HealthCheck *HealthCheck      `yaml:"healthCheck,omitempty"` // Nil means the service is healthy once started
	Restart     RestartSpec       `yaml:"restart,omitempty"`     // Failure handling (default: on-failure)
}

// HealthCheck declares how a service's readiness is probed.
type HealthCheck struct {
	Type        CheckType `yaml:"type"`                  // "tcp", "http" or "command"
	Target      string    `yaml:"target,omitempty"`      // Address for tcp ("localhost:5432") or URL for http
	Command     []string  `yaml:"command,omitempty"`     // Command and args for command checks
	Interval    Duration  `yaml:"interval,omitempty"`    // Time between checks
	Timeout     Duration  `yaml:"timeout,omitempty"`     // Per-check deadline
	Retries     int       `yaml:"retries,omitempty"`     // Consecutive failures before unhealthy
	GracePeriod Duration  `yaml:"gracePeriod,omitempty"` // Window after start during which no check runs
}

// RestartSpec declares the restart policy for a failed service.
type RestartSpec struct {
	Policy     RestartPolicy `yaml:"policy,omitempty"`     // "never", "on-failure" or "always"
	MaxRetries int           `yaml:"maxRetries,omitempty"` // Restart budget for on-failure (default: 3)
}

// VolumeBinding names a persistent engine volume and the path where the
// owning container mounts it. Volumes are container-only; command
// services manage their own state on the host.
type VolumeBinding struct {
	Name      string `yaml:"name"`
	MountPath string `yaml:"mountPath"`
}
