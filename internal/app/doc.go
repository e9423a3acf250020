// Package app provides application bootstrap and lifecycle management for steward.
//
// It turns a loaded configuration into wired components and runs the long
// lived parts of the control plane.
//
// # Components
//
//  1. **Bootstrap (`bootstrap.go`)**: logging setup, configuration loading and service creation
//  2. **Configuration (`config.go`)**: runtime settings passed in from the command line
//  3. **Services (`services.go`)**: construction of every component and its dependencies
//  4. **Serve (`serve.go`)**: the state synchronisation daemon run by "steward serve"
//
// # Initialization Sequence
//
// InitializeServices builds components bottom-up so that every dependency
// exists before its consumer:
//
//  1. Metrics registry
//  2. Resource provider, loaded from resources.yaml
//  3. Current state store, seeded with every known resource
//  4. State channel (NATS when enabled, in-process otherwise) and bus
//  5. History recorders and the notification broadcaster
//  6. SSH transport, remote executor and platform command builders
//  7. Control orchestrator and deployment pipeline
//
// Start connects the state channel and begins listening for agent reports.
// One-shot commands such as "steward control" call Start too, so that the
// state changes they cause reach the rest of the cluster.
//
// # Serve Mode
//
// Run blocks until the context is cancelled or a component fails, running
// in one errgroup:
//   - resource file watching and reload
//   - the Prometheus endpoint (when metrics.enabled)
//   - state change logging for every published change
//
// Example:
//
//	cfg := app.NewConfig(false, false, "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	defer application.Close()
//	return application.Run(ctx)
package app
