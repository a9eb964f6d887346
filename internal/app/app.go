package app

import (
	"context"
	"os"
	"time"

	"stackctl/internal/config"
	"stackctl/internal/supervisor"
	"stackctl/pkg/logging"
)

// Config holds the settings for one supervised run of a stack.
type Config struct {
	// ManifestPath is the stack manifest to load.
	ManifestPath string

	// LogLevel names the minimum level that gets logged.
	LogLevel string

	// NoTUI selects the headless mode over the dashboard.
	NoTUI bool

	// WaitTimeout bounds the convergence wait in headless mode.
	WaitTimeout time.Duration

	// RuntimeDataDir overrides the manifest's dataDir setting as the
	// root for command-service state directories.
	RuntimeDataDir string
}

// NewConfig creates a new application configuration.
func NewConfig(manifestPath, logLevel string, noTUI bool, waitTimeout time.Duration, runtimeDataDir string) *Config {
	return &Config{
		ManifestPath:   manifestPath,
		LogLevel:       logLevel,
		NoTUI:          noTUI,
		WaitTimeout:    waitTimeout,
		RuntimeDataDir: runtimeDataDir,
	}
}

// Application is one loaded stack wired to the supervisor that will run
// it.
type Application struct {
	config   *Config
	registry *config.Registry
	sup      *supervisor.Supervisor
}

// New loads the manifest and wires up the supervisor. Logging starts in
// CLI mode; the dashboard swaps it for the channel-based handler when it
// takes over.
func New(cfg *Config) (*Application, error) {
	logging.InitForCLI(logging.ParseLevel(cfg.LogLevel), os.Stderr)

	reg, err := config.Load(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	logging.Info("Bootstrap", "Loaded stack %q with %d services from %s", reg.StackName(), reg.Len(), cfg.ManifestPath)

	dataDir := cfg.RuntimeDataDir
	if dataDir == "" {
		dataDir = reg.Settings().DataDir
	}
	sup, err := buildSupervisor(reg, dataDir)
	if err != nil {
		return nil, err
	}

	return &Application{
		config:   cfg,
		registry: reg,
		sup:      sup,
	}, nil
}

// Run executes the application in the appropriate mode.
func (a *Application) Run(ctx context.Context) error {
	if a.config.NoTUI {
		return a.runHeadless(ctx)
	}
	return a.runDashboard(ctx)
}
