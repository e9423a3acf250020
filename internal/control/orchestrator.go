package control

import (
	"context"
	"fmt"
	"path"
	"time"

	"steward/internal/api"
	"steward/internal/command"
	"steward/internal/history"
	"steward/internal/metrics"
	"steward/internal/resource"
	"steward/internal/state"
	"steward/pkg/logging"
)

// backupSuffixLayout is appended to a file's path when it is backed up
// before being overwritten.
const backupSuffixLayout = ".20060102_150405"

// Executor runs one built command against a host.
type Executor interface {
	Execute(ctx context.Context, host string, cmd command.Command) (command.Outcome, error)
}

// Dependencies are the collaborators of an Orchestrator.
type Dependencies struct {
	Resources resource.Provider
	Builders  *command.Builders
	Executor  Executor
	Store     *state.Store
	// Bus must be built over Store. Stored states are written through it.
	Bus *state.Bus

	// History receives every requested operation and failure.
	History history.Recorder
	// Notifier additionally receives operations that carry no lifecycle
	// state (service install and removal, file copies). Optional.
	Notifier history.Recorder
	Metrics  *metrics.Metrics

	// ScriptsDir is the remote helper scripts directory. Copies into it are
	// plumbing and are not recorded in history.
	ScriptsDir string
}

// Orchestrator executes control operations.
type Orchestrator struct {
	deps  Dependencies
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// New creates an Orchestrator.
func New(deps Dependencies) *Orchestrator {
	if deps.History == nil {
		deps.History = history.LogRecorder{}
	}
	return &Orchestrator{
		deps:  deps,
		now:   time.Now,
		sleep: sleepContext,
	}
}

// Resource resolves ref through the resource provider.
func (o *Orchestrator) Resource(ctx context.Context, ref api.ResourceRef) (api.Resource, error) {
	return o.deps.Resources.Get(ctx, ref)
}

// Control runs op against the resource identified by ref on behalf of actor.
func (o *Orchestrator) Control(ctx context.Context, ref api.ResourceRef, op api.ControlOperation, actor api.Actor, args ...string) (command.Outcome, error) {
	res, err := o.deps.Resources.Get(ctx, ref)
	if err != nil {
		return command.Outcome{}, err
	}
	return o.ControlResource(ctx, res, op, actor, args...)
}

// ControlResource is Control for an already resolved resource.
func (o *Orchestrator) ControlResource(ctx context.Context, res api.Resource, op api.ControlOperation, actor api.Actor, args ...string) (command.Outcome, error) {
	profile := res.Ref.Kind.Profile()
	started := o.now()

	event := history.NewEvent(res, op.EventLabel(res.Ref.Kind), history.UserAction, actor)
	o.record(ctx, event)

	if transition, ok := profile.TransitionState(op); ok {
		o.deps.Bus.Publish(ctx, api.CurrentState{Ref: res.Ref, State: transition, Actor: actor, ObservedAt: o.now()})
	} else if op.IsHistoryEvent() {
		o.notify(ctx, event)
	}

	cmd, err := o.deps.Builders.Build(op, res, args...)
	if err != nil {
		return command.Outcome{}, fmt.Errorf("failed to build %s for %s: %w", op, res.Ref, err)
	}

	outcome, err := o.deps.Executor.Execute(ctx, res.Host, cmd)
	if err != nil {
		logging.Error("Control", err, "%s of %s on %s could not be executed", op, res.Label(), res.Host)
		o.record(ctx, history.NewEvent(res, err.Error(), history.ApplicationError, actor))
		o.fail(ctx, res, op, actor, err.Error())
		o.deps.Metrics.RecordControl(string(res.Ref.Kind), string(op), "TRANSPORT_ERROR", o.now().Sub(started))
		return command.Outcome{}, err
	}

	if outcome.Stdout != "" && (op == api.OpStart || op == api.OpStop) {
		logging.Info("Control", "%s of %s printed: %s", op, res.Label(), outcome.Stdout)
		outcome.Stdout = ""
	}

	switch {
	case outcome.Classification == command.ProcessKilled:
		outcome.ExitCode = command.ExitSuccess
		outcome.Stdout = command.ForcedStoppedMessage
		o.setState(ctx, res, profile.ForcedStopped, actor, command.ForcedStoppedMessage)

	case outcome.Succeeded(op):
		if outcome.Classification == command.AbnormalSuccess {
			logging.Warn("Control", "%s of %s: %s", op, res.Label(), outcome.Description())
			outcome = command.Outcome{Classification: command.AbnormalSuccess, ExitCode: command.ExitSuccess}
		} else if outcome.Classification == command.ServiceAbsent {
			logging.Info("Control", "%s of %s: service was already absent", op, res.Label())
		}
		if target, ok := profile.TargetState(op); ok {
			o.setState(ctx, res, target, actor, "")
		}

	default:
		errMsg := fmt.Sprintf("%s control command was not successful! Return code = %d, description = %s",
			profile.Label, outcome.ExitCode, outcome.Description())
		logging.Error("Control", outcome.Err(res.Ref, op), "%s of %s failed", op, res.Label())
		o.record(ctx, history.NewEvent(res, errMsg, history.ApplicationError, actor))
		o.fail(ctx, res, op, actor, errMsg)
	}

	o.deps.Metrics.RecordControl(string(res.Ref.Kind), string(op), string(outcome.Classification), o.now().Sub(started))
	return outcome, nil
}

// setState writes the store and publishes the change.
func (o *Orchestrator) setState(ctx context.Context, res api.Resource, st api.LifecycleState, actor api.Actor, message string) {
	o.deps.Bus.Commit(ctx, api.CurrentState{
		Ref:        res.Ref,
		State:      st,
		Actor:      actor,
		ObservedAt: o.now(),
		Message:    message,
	})
}

// fail publishes FAILED. Only operations that carry a lifecycle state also
// write FAILED to the store.
func (o *Orchestrator) fail(ctx context.Context, res api.Resource, op api.ControlOperation, actor api.Actor, message string) {
	profile := res.Ref.Kind.Profile()
	cs := api.CurrentState{Ref: res.Ref, State: profile.Failed, Actor: actor, ObservedAt: o.now(), Message: message}
	if _, ok := profile.TargetState(op); ok {
		o.deps.Bus.Commit(ctx, cs)
		return
	}
	o.deps.Bus.Publish(ctx, cs)
}

func (o *Orchestrator) record(ctx context.Context, event history.Event) {
	if err := o.deps.History.Record(ctx, event); err != nil {
		logging.Warn("History", "Failed to record %q for %s: %v", event.Text, event.ServerLabel, err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, event history.Event) {
	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.Record(ctx, event); err != nil {
		logging.Warn("History", "Failed to send notification %q for %s: %v", event.Text, event.ServerLabel, err)
	}
}

// Run builds and executes op without touching state or history.
func (o *Orchestrator) Run(ctx context.Context, res api.Resource, op api.ControlOperation, args ...string) (command.Outcome, error) {
	cmd, err := o.deps.Builders.Build(op, res, args...)
	if err != nil {
		return command.Outcome{}, fmt.Errorf("failed to build %s for %s: %w", op, res.Ref, err)
	}
	started := o.now()
	outcome, err := o.deps.Executor.Execute(ctx, res.Host, cmd)
	if err != nil {
		o.deps.Metrics.RecordControl(string(res.Ref.Kind), string(op), "TRANSPORT_ERROR", o.now().Sub(started))
		return command.Outcome{}, err
	}
	o.deps.Metrics.RecordControl(string(res.Ref.Kind), string(op), string(outcome.Classification), o.now().Sub(started))
	return outcome, nil
}

// CreateDirectory creates dir on the resource's host if it does not exist.
func (o *Orchestrator) CreateDirectory(ctx context.Context, res api.Resource, dir string) (command.Outcome, error) {
	return o.Run(ctx, res, api.OpCreateDirectory, dir)
}

// ChangeFileMode runs chmod mode on dir/file. file may be a glob.
func (o *Orchestrator) ChangeFileMode(ctx context.Context, res api.Resource, mode, dir, file string) (command.Outcome, error) {
	return o.Run(ctx, res, api.OpChangeFileMode, mode, dir, file)
}

// SecureCopy copies source to destination on the resource's host. An
// existing destination is first copied aside with a timestamp suffix; a
// failed backup is logged and the copy goes ahead.
func (o *Orchestrator) SecureCopy(ctx context.Context, res api.Resource, actor api.Actor, source, destination string) (command.Outcome, error) {
	if !o.isScriptsPath(destination) {
		event := history.NewEvent(res, fmt.Sprintf("%s %s", api.OpSecureCopy, path.Base(destination)), history.UserAction, actor)
		o.record(ctx, event)
		o.notify(ctx, event)
	}

	exists, err := o.Run(ctx, res, api.OpCheckFileExists, destination)
	if err != nil {
		return command.Outcome{}, err
	}
	if exists.Succeeded(api.OpCheckFileExists) {
		backup := destination + o.now().Format(backupSuffixLayout)
		outcome, err := o.Run(ctx, res, api.OpBackUpConfigFile, destination, backup)
		if err != nil {
			return command.Outcome{}, err
		}
		if outcome.Succeeded(api.OpBackUpConfigFile) {
			logging.Info("Control", "Backed up %s to %s on %s", destination, backup, res.Host)
		} else {
			logging.Info("Control", "Failed to back up %s for %s, continuing with secure copy", destination, res.Label())
		}
	}

	return o.Run(ctx, res, api.OpSecureCopy, source, destination)
}

func (o *Orchestrator) isScriptsPath(destination string) bool {
	if o.deps.ScriptsDir == "" {
		return false
	}
	scripts := path.Clean(o.deps.ScriptsDir)
	dest := path.Clean(destination)
	return dest == scripts || path.Dir(dest) == scripts
}
