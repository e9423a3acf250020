package cmd

import (
	"errors"

	"steward/internal/api"
	"steward/internal/cli"
	"steward/internal/deploy"

	"github.com/spf13/cobra"
)

var deployFile string

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <kind> <id>",
		Short: "Generate and install the configuration of a resource",
		Long: `Renders the configuration templates of a resource, packages them into an
archive, ships the archive to the host and reinstalls the service. The
resource must not be started.

With --file only the named resource file is rendered and copied.

Examples:
  steward deploy jvm 7
  steward deploy webserver 3 --file httpd.conf`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeKinds,
		RunE:              runDeploy,
	}

	cmd.Flags().StringVar(&deployFile, "file", "", "Deploy a single resource file instead of the full configuration")
	return cmd
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ref, err := parseRef(args[0], args[1])
	if err != nil {
		return err
	}
	printer, err := newPrinter(cmd, rootFlags)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	application, err := startApplication(ctx, rootFlags)
	if err != nil {
		return err
	}
	defer application.Close()
	services := application.Services()

	res, err := services.Controller.Resource(ctx, ref)
	if err != nil {
		return err
	}

	var result *deploy.Result
	actor := resolveActor(rootFlags)
	runErr := cli.Progress(cmd.ErrOrStderr(), rootFlags.Quiet, "deploying "+res.Label(), func() error {
		var err error
		if deployFile != "" {
			result, err = services.Pipeline.DeployFile(ctx, ref, deployFile, actor)
		} else {
			result, err = services.Pipeline.Deploy(ctx, ref, actor)
		}
		return err
	})

	var stepErr *api.PipelineStepError
	if runErr != nil && !errors.As(runErr, &stepErr) {
		return runErr
	}
	failedStep := ""
	if stepErr != nil {
		failedStep = stepErr.Step
	}

	if err := printer.PrintDeploy(cli.NewDeployView(res, result, failedStep, runErr)); err != nil {
		return err
	}
	return runErr
}
