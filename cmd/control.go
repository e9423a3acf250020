package cmd

import (
	"fmt"
	"strings"

	"steward/internal/api"
	"steward/internal/cli"
	"steward/internal/command"

	"github.com/spf13/cobra"
)

var (
	controlWait    bool
	controlTimeout int
)

func newControlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "control <kind> <id> <operation> [args...]",
		Short: "Run a control operation against a JVM or web server",
		Long: `Runs one control operation on the host of a resource and prints the
classified result.

Operations: start, stop, invoke-service, delete-service, create-directory,
change-file-mode, check-file-exists, back-up-config-file,
deploy-config-archive. Extra arguments are passed to operations that take
them, such as the directory for create-directory.

With --wait, start and stop block until the resource reports a terminal
state or the timeout runs out. A timed out wait does not cancel the remote
command.

Examples:
  steward control jvm 7 stop --wait
  steward control webserver 3 start
  steward control jvm 7 create-directory /opt/app/logs`,
		Args:              cobra.MinimumNArgs(3),
		ValidArgsFunction: completeKinds,
		RunE:              runControl,
	}

	cmd.Flags().BoolVar(&controlWait, "wait", false, "Wait until the resource reaches the operation's terminal state")
	cmd.Flags().IntVar(&controlTimeout, "timeout", 0, "Seconds to wait with --wait (default: control.waitTimeoutSeconds)")
	return cmd
}

func runControl(cmd *cobra.Command, args []string) error {
	ref, err := parseRef(args[0], args[1])
	if err != nil {
		return err
	}
	op, err := api.ParseControlOperation(args[2])
	if err != nil {
		return err
	}
	if op == api.OpSecureCopy {
		return fmt.Errorf("use 'steward deploy --file' to copy files to a resource")
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

	var outcome command.Outcome
	label := fmt.Sprintf("%s %s", strings.ToLower(string(op)), res.Label())
	runErr := cli.Progress(cmd.ErrOrStderr(), rootFlags.Quiet, label, func() error {
		var err error
		outcome, err = services.Controller.ControlResource(ctx, res, op, resolveActor(rootFlags), args[3:]...)
		return err
	})
	runErr = controlError(ref, op, outcome, runErr)
	if runErr != nil && !api.IsCommandFailure(runErr) {
		return runErr
	}

	view := cli.NewOutcomeView(res, op, outcome)
	if runErr == nil && controlWait {
		timeout := controlTimeout
		if timeout <= 0 {
			timeout = services.Config.Control.WaitTimeoutSeconds
		}
		var reached bool
		_ = cli.Progress(cmd.ErrOrStderr(), rootFlags.Quiet, "waiting for "+res.Label(), func() error {
			reached = services.Controller.WaitForState(ctx, ref, op, timeout)
			return nil
		})
		view.Reached = &reached
		if !reached {
			runErr = &exitCodeError{
				code: ExitCodeError,
				msg:  fmt.Sprintf("%s did not reach a terminal state for %s within %ds", ref, op, timeout),
			}
		}
	}
	view.State = services.Store.StateOf(ref)

	if err := printer.PrintOutcome(view); err != nil {
		return err
	}
	return runErr
}

// controlError is the error runControl exits with. A command that ran but
// did not succeed for op is a *api.CommandFailure even when the controller
// reported no error.
func controlError(ref api.ResourceRef, op api.ControlOperation, outcome command.Outcome, err error) error {
	if err != nil {
		return err
	}
	return outcome.Err(ref, op)
}
