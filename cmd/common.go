package cmd

import (
	"context"
	"fmt"
	"os"

	"steward/internal/api"
	"steward/internal/app"
	"steward/internal/cli"

	"github.com/spf13/cobra"
)

// commandContext returns the command's context, falling back to Background.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// startApplication bootstraps steward for a one-shot command. Logging is
// silenced in quiet mode. The caller must Close the application.
func startApplication(ctx context.Context, flags cli.CommandFlags) (*app.Application, error) {
	cfg := app.NewConfig(flags.Debug, flags.Quiet, flags.ConfigPath)
	application, err := app.NewApplication(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	if err := application.Start(ctx); err != nil {
		application.Close()
		return nil, fmt.Errorf("failed to start application: %w", err)
	}
	return application, nil
}

// newPrinter creates a printer for the --output and --no-headers flags.
func newPrinter(cmd *cobra.Command, flags cli.CommandFlags) (*cli.Printer, error) {
	format, err := cli.ParseOutputFormat(flags.OutputFormat)
	if err != nil {
		return nil, err
	}
	return cli.NewPrinter(cmd.OutOrStdout(), format, flags.NoHeaders), nil
}

// parseRef parses the <kind> <id> arguments.
func parseRef(kind, id string) (api.ResourceRef, error) {
	k, err := api.ParseResourceKind(kind)
	if err != nil {
		return api.ResourceRef{}, err
	}
	if id == "" {
		return api.ResourceRef{}, fmt.Errorf("resource id must not be empty")
	}
	return api.ResourceRef{Kind: k, ID: id}, nil
}

// resolveActor returns the --actor value, falling back to $USER and then
// the system actor.
func resolveActor(flags cli.CommandFlags) api.Actor {
	if flags.Actor != "" {
		return api.Actor(flags.Actor)
	}
	if u := os.Getenv("USER"); u != "" {
		return api.Actor(u)
	}
	return api.SystemActor
}

// completeKinds offers the resource kinds as first argument.
func completeKinds(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return []string{string(api.KindJVM), string(api.KindWebServer)}, cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
