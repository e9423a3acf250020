package deploy

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"steward/internal/api"
	"steward/internal/command"
	"steward/internal/history"
	"steward/internal/lock"
	"steward/internal/metrics"
	"steward/internal/resource"
	"steward/internal/state"
	"steward/pkg/logging"
)

// Step names. They are stable identifiers reported in errors, metrics and
// to StepListeners.
const (
	StepCreateScriptsDir  = "create-scripts-dir"
	StepCopyScripts       = "copy-scripts"
	StepDeleteService     = "delete-service"
	StepRender            = "render"
	StepPackage           = "package"
	StepShipArchive       = "ship-archive"
	StepDeployArchive     = "deploy-archive"
	StepShipResourceFiles = "ship-resource-files"
	StepInstallService    = "install-service"
	StepMarkReady         = "mark-ready"

	// StepDeployFile is the single step of DeployFile.
	StepDeployFile = "deploy-file"
)

// Controller is the part of the control orchestrator a deployment drives.
type Controller interface {
	ControlResource(ctx context.Context, res api.Resource, op api.ControlOperation, actor api.Actor, args ...string) (command.Outcome, error)
	CreateDirectory(ctx context.Context, res api.Resource, dir string) (command.Outcome, error)
	ChangeFileMode(ctx context.Context, res api.Resource, mode, dir, file string) (command.Outcome, error)
	SecureCopy(ctx context.Context, res api.Resource, actor api.Actor, source, destination string) (command.Outcome, error)
}

// StepListener observes step execution. Calls for one deployment are made
// sequentially from the deploying goroutine.
type StepListener interface {
	StepStarted(ref api.ResourceRef, step string)
	StepFinished(ref api.ResourceRef, step string, skipped bool, err error)
}

// Dependencies are the collaborators of a Pipeline.
type Dependencies struct {
	Resources  resource.Provider
	Controller Controller
	Locks      *lock.Registry
	Store      *state.Store
	Bus        *state.Bus // built over Store
	History    history.Recorder
	Renderer   Renderer
	Metrics    *metrics.Metrics
	Listener   StepListener
}

// StepResult reports one executed step.
type StepResult struct {
	Name     string
	Skipped  bool
	Duration time.Duration
}

// Result reports a deployment. On failure it holds the steps that ran.
type Result struct {
	Ref     api.ResourceRef
	Archive *Archive
	Files   []string
	Steps   []StepResult
	State   api.LifecycleState
}

// Pipeline generates, packages and installs the configuration of a
// resource, holding the resource's lock for the whole run.
type Pipeline struct {
	cfg  Config
	deps Dependencies
	now  func() time.Time
}

// New creates a Pipeline.
func New(cfg Config, deps Dependencies) *Pipeline {
	if deps.History == nil {
		deps.History = history.LogRecorder{}
	}
	if deps.Renderer == nil {
		deps.Renderer = NewTemplateRenderer(cfg.TemplateDir)
	}
	return &Pipeline{cfg: cfg.withDefaults(), deps: deps, now: time.Now}
}

// deployment is the state shared by the steps of one run.
type deployment struct {
	res        api.Resource
	actor      api.Actor
	entryState api.LifecycleState
	stageDir   string
	result     *Result
}

type step struct {
	name string
	run  func(ctx context.Context, d *deployment) (skipped bool, err error)
}

func (p *Pipeline) steps() []step {
	return []step{
		{StepCreateScriptsDir, p.createScriptsDir},
		{StepCopyScripts, p.copyScripts},
		{StepDeleteService, p.deleteService},
		{StepRender, p.render},
		{StepPackage, p.pack},
		{StepShipArchive, p.shipArchive},
		{StepDeployArchive, p.deployArchive},
		{StepShipResourceFiles, p.shipResourceFiles},
		{StepInstallService, p.installService},
		{StepMarkReady, p.markReady},
	}
}

// Deploy regenerates and installs the configuration of the resource
// identified by ref. A running resource is rejected before anything is
// sent to its host.
func (p *Pipeline) Deploy(ctx context.Context, ref api.ResourceRef, actor api.Actor) (*Result, error) {
	return p.run(ctx, ref, actor, "deploy", "DEPLOY_CONFIG", p.steps())
}

// DeployFile renders and ships the single resource file named fileName
// without touching the archive or the service registration.
func (p *Pipeline) DeployFile(ctx context.Context, ref api.ResourceRef, fileName string, actor api.Actor) (*Result, error) {
	tmpl, ok := p.resourceFile(ref.Kind, fileName)
	if !ok {
		return nil, api.NewNotFoundError("resource file", fileName)
	}
	steps := []step{{StepDeployFile, func(ctx context.Context, d *deployment) (bool, error) {
		return false, p.shipFiles(ctx, d, []FileTemplate{tmpl})
	}}}
	return p.run(ctx, ref, actor, "deploy file to", "DEPLOY_FILE "+path.Base(fileName), steps)
}

func (p *Pipeline) resourceFile(kind api.ResourceKind, fileName string) (FileTemplate, bool) {
	for _, f := range p.cfg.ResourceFiles {
		if !f.AppliesTo(kind) {
			continue
		}
		if f.Template == fileName || path.Base(f.Template) == fileName || path.Base(f.Path) == fileName {
			return f, true
		}
	}
	return FileTemplate{}, false
}

func (p *Pipeline) run(ctx context.Context, ref api.ResourceRef, actor api.Actor, verb, label string, steps []step) (*Result, error) {
	res, err := p.deps.Resources.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := p.checkPrecondition(res, verb); err != nil {
		p.deps.Metrics.RecordDeployment(string(ref.Kind), "rejected")
		return nil, err
	}

	handle, err := p.deps.Locks.Acquire(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", res.Label(), err)
	}
	defer handle.Release()

	// The state may have changed while we waited for the lock.
	if err := p.checkPrecondition(res, verb); err != nil {
		p.deps.Metrics.RecordDeployment(string(ref.Kind), "rejected")
		return nil, err
	}

	d := &deployment{
		res:        res,
		actor:      actor,
		entryState: p.deps.Store.StateOf(ref),
		stageDir:   stageDir(p.cfg.StagingDir, ref),
		result:     &Result{Ref: ref},
	}
	p.record(ctx, history.NewEvent(res, label, history.UserAction, actor))
	logging.Info("Deploy", "Starting %s of %s on %s", label, res.Label(), res.Host)

	for _, s := range steps {
		if err := p.runStep(ctx, d, s); err != nil {
			stepErr := &api.PipelineStepError{Ref: ref, Step: s.name, Err: err}
			logging.Error("Deploy", err, "Step %s of %s for %s (%s) failed", s.name, label, res.Label(), ref)
			p.record(ctx, history.NewEvent(res, stepErr.Error(), history.ApplicationError, actor))
			p.deps.Metrics.RecordDeployment(string(ref.Kind), "failure")
			d.result.State = p.deps.Store.StateOf(ref)
			return d.result, stepErr
		}
	}

	d.result.State = p.deps.Store.StateOf(ref)
	p.deps.Metrics.RecordDeployment(string(ref.Kind), "success")
	logging.Info("Deploy", "Finished %s of %s, state is %s", label, res.Label(), d.result.State)
	return d.result, nil
}

func (p *Pipeline) runStep(ctx context.Context, d *deployment, s step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.deps.Listener != nil {
		p.deps.Listener.StepStarted(d.res.Ref, s.name)
	}

	started := p.now()
	skipped, err := s.run(ctx, d)
	elapsed := p.now().Sub(started)

	if p.deps.Listener != nil {
		p.deps.Listener.StepFinished(d.res.Ref, s.name, skipped, err)
	}
	if err != nil {
		return err
	}
	p.deps.Metrics.RecordStep(s.name, elapsed)
	d.result.Steps = append(d.result.Steps, StepResult{Name: s.name, Skipped: skipped, Duration: elapsed})
	if skipped {
		logging.Debug("Deploy", "Skipped %s for %s", s.name, d.res.Label())
	} else {
		logging.Debug("Deploy", "Completed %s for %s in %s", s.name, d.res.Label(), elapsed)
	}
	return nil
}

func (p *Pipeline) checkPrecondition(res api.Resource, verb string) error {
	st := p.deps.Store.StateOf(res.Ref)
	if st == res.Ref.Kind.Profile().Started {
		return &api.PreconditionError{
			Ref:       res.Ref,
			State:     st,
			Operation: verb,
			Reason:    fmt.Sprintf("%s must be stopped first", res.Label()),
		}
	}
	return nil
}

func (p *Pipeline) record(ctx context.Context, event history.Event) {
	if err := p.deps.History.Record(ctx, event); err != nil {
		logging.Warn("History", "Failed to record %q for %s: %v", event.Text, event.ServerLabel, err)
	}
}

// checked turns a transport error or failed outcome into one error.
func checked(ref api.ResourceRef, op api.ControlOperation, outcome command.Outcome, err error) error {
	if err != nil {
		return err
	}
	return outcome.Err(ref, op)
}

var errNoArchive = errors.New("no archive was packaged")
