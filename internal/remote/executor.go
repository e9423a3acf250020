package remote

import (
	"context"
	"errors"
	"time"

	"steward/internal/api"
	"steward/internal/command"
	"steward/pkg/logging"
)

// Executor runs built commands against a host through a Transport.
type Executor struct {
	transport Transport
	timeout   time.Duration
}

// NewExecutor creates an Executor. A timeoutSeconds of zero or less means
// commands block until the remote side finishes.
func NewExecutor(transport Transport, timeoutSeconds int) *Executor {
	e := &Executor{transport: transport}
	if timeoutSeconds > 0 {
		e.timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return e
}

// Execute runs cmd on host. It returns an error only for transport failures,
// always as *api.TransportError. It never retries.
func (e *Executor) Execute(ctx context.Context, host string, cmd command.Command) (command.Outcome, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if cmd.Copy != nil {
		logging.Debug("Executor", "Copying %s to %s:%s", cmd.Copy.Source, host, cmd.Copy.Destination)
		if err := e.transport.CopyFile(ctx, host, cmd.Copy.Source, cmd.Copy.Destination); err != nil {
			if terr := e.transportError(ctx, host, err); terr != nil {
				return command.Outcome{}, terr
			}
			return command.NewOutcome(command.ExitFailed, "", err.Error()), nil
		}
		if cmd.Line == "" {
			return command.NewOutcome(command.ExitSuccess, "", ""), nil
		}
	}

	line := cmd.Line
	if cmd.WorkDir != "" {
		line = "cd " + command.Quote(cmd.WorkDir) + " && " + line
	}

	logging.Debug("Executor", "Running %s on %s: %s", cmd.Operation, host, line)
	exitCode, stdout, stderr, err := e.transport.RunCommand(ctx, host, line)
	if err != nil {
		if terr := e.transportError(ctx, host, err); terr != nil {
			return command.Outcome{}, terr
		}
		return command.Outcome{}, &api.TransportError{Host: host, Op: "session", Err: err}
	}

	outcome := command.NewOutcome(exitCode, stdout, stderr)
	logging.Debug("Executor", "%s on %s exited %d (%s)", cmd.Operation, host, exitCode, outcome.Classification)
	return outcome, nil
}

// transportError returns err as a transport error when it is one, or when
// the context ended. It returns nil for plain copy failures.
func (e *Executor) transportError(ctx context.Context, host string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		op := "canceled"
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			op = "timeout"
		}
		return &api.TransportError{Host: host, Op: op, Err: err}
	}
	if api.IsTransportError(err) {
		return err
	}
	return nil
}
