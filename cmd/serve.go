package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"steward/internal/app"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the steward control plane",
		Long: `Starts the state bus and serves until interrupted.

While serving, steward:
  - Exchanges lifecycle state reports with the other control planes over NATS
  - Reloads resources.yaml when it changes and seeds new resources
  - Logs every state change it accepts
  - Exposes Prometheus metrics when metrics.enabled is set

Configuration:
  steward loads config.yaml from ~/.config/steward, or from the directory
  given with --config-path.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, _ []string) error {
	cfg := app.NewConfig(rootFlags.Debug, false, rootFlags.ConfigPath)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return application.Run(ctx)
}
