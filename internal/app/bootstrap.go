package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"steward/internal/config"
	"steward/pkg/logging"
)

// Application represents the main application structure that bootstraps and runs steward.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: Load configuration, initialize logging, setup services
//  2. Execution phase: Start the state bus and run the requested mode
type Application struct {
	config   *Config
	services *Services
}

// NewApplication creates and initializes a new application instance with the provided configuration.
//
// Configuration Loading Behavior:
//   - If cfg.ConfigPath is set: loads from the specified directory
//   - If cfg.ConfigPath is empty: loads from ~/.config/steward
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}

	var logOutput io.Writer = os.Stderr
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.InitForCLI(appLogLevel, logOutput)

	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	stewardCfg, err := config.LoadConfig(configPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load steward configuration from path: %s", configPath)
		return nil, fmt.Errorf("failed to load steward configuration from path %s: %w", configPath, err)
	}
	cfg.StewardConfig = &stewardCfg

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services returns the wired components.
func (a *Application) Services() *Services {
	return a.services
}

// Start connects the state channel and starts listening for reports.
func (a *Application) Start(ctx context.Context) error {
	return a.services.Start(ctx)
}

// Run starts the application and serves until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.services.Start(ctx); err != nil {
		return err
	}
	return runServe(ctx, a.config, a.services)
}

// Close releases the state channel and subscribers.
func (a *Application) Close() {
	a.services.Close()
}
