package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"steward/internal/api"
	"steward/internal/command"
	"steward/internal/config"
	"steward/internal/control"
	"steward/internal/deploy"
	"steward/internal/history"
	"steward/internal/lock"
	"steward/internal/metrics"
	"steward/internal/remote"
	"steward/internal/resource"
	"steward/internal/state"
	"steward/pkg/logging"
)

// snapshotTimeout bounds the wait for a peer's state table at start.
const snapshotTimeout = 2 * time.Second

// connector is implemented by channels that need a network connection.
type connector interface {
	Connect(ctx context.Context) error
}

// Services holds all initialized components used by the application.
//
// Field descriptions:
//   - Resources: resource metadata loaded from resources.yaml
//   - Store, Bus: current state and its distribution
//   - Controller: executes control operations
//   - Pipeline: generates and installs resource configuration
//   - Notifications: discrete history notifications for live consumers
type Services struct {
	Config *config.StewardConfig

	Metrics   *metrics.Metrics
	Resources *resource.FileProvider
	Store     *state.Store
	Channel   state.Channel
	Bus       *state.Bus
	Locks     *lock.Registry

	History       history.Recorder
	Notifications *history.Broadcaster

	Transport  remote.Transport
	Controller *control.Orchestrator
	Pipeline   *deploy.Pipeline
}

// InitializeServices creates every component for the loaded configuration.
func InitializeServices(cfg *Config) (*Services, error) {
	sc := cfg.StewardConfig
	if sc == nil {
		return nil, fmt.Errorf("configuration has not been loaded")
	}

	s := &Services{
		Config:        sc,
		Metrics:       metrics.New(),
		Store:         state.NewStore(),
		Locks:         lock.NewRegistry(),
		Notifications: history.NewBroadcaster(),
	}

	s.Resources = resource.NewFileProvider(sc.Paths.ResourcesFile)
	if err := s.Resources.Load(); err != nil {
		return nil, fmt.Errorf("failed to load resources: %w", err)
	}
	resources, err := s.Resources.List(context.Background())
	if err != nil {
		return nil, err
	}
	s.seed(resources)
	s.Resources.OnChange(s.seed)

	s.Channel = newChannel(sc.Bus)
	s.Bus = state.NewBus(s.Store, s.Channel,
		state.WithMetrics(s.Metrics),
		state.WithOrigin(fmt.Sprintf("%s#%d", origin(sc.Bus), os.Getpid())),
		state.WithEvents(s.Notifications),
	)

	s.History = newHistory(sc.History)

	s.Transport = remote.NewSSHTransport(remote.SSHConfig{
		User:           sc.SSH.User,
		Password:       sc.SSH.Password,
		PrivateKeyFile: sc.SSH.PrivateKeyFile,
		KnownHostsFile: sc.SSH.KnownHostsFile,
		Port:           sc.SSH.Port,
		DialTimeout:    time.Duration(sc.SSH.DialTimeoutSeconds) * time.Second,
	})

	s.Controller = control.New(control.Dependencies{
		Resources:  s.Resources,
		Builders:   command.NewBuilders(layout(sc)),
		Executor:   remote.NewExecutor(s.Transport, sc.SSH.TimeoutSeconds),
		Store:      s.Store,
		Bus:        s.Bus,
		History:    s.History,
		Notifier:   history.Multi{s.Notifications, s.Bus},
		Metrics:    s.Metrics,
		ScriptsDir: sc.Paths.RemoteScriptsDir,
	})

	s.Pipeline = deploy.New(deployConfig(sc), deploy.Dependencies{
		Resources:  s.Resources,
		Controller: s.Controller,
		Locks:      s.Locks,
		Store:      s.Store,
		Bus:        s.Bus,
		History:    s.History,
		Metrics:    s.Metrics,
	})

	logging.Info("Bootstrap", "Initialized %d resources from %s", len(resources), sc.Paths.ResourcesFile)
	return s, nil
}

// Start connects the state channel, starts the bus listener and loads the
// state table of a running serve daemon. Without one the store keeps its
// seeded states.
func (s *Services) Start(ctx context.Context) error {
	if c, ok := s.Channel.(connector); ok {
		if err := c.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect state channel: %w", err)
		}
	}
	if err := s.Bus.Start(); err != nil {
		return err
	}

	hydrateCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	n, err := s.Bus.Hydrate(hydrateCtx)
	if err != nil {
		logging.Warn("StateBus", "Failed to load peer state, continuing with local state: %v", err)
		return nil
	}
	if n > 0 {
		logging.Debug("StateBus", "Loaded %d resource states from a running peer", n)
	}
	return nil
}

// Close closes the bus and the state channel.
func (s *Services) Close() {
	s.Bus.Close()
	if err := s.Channel.Close(); err != nil {
		logging.Warn("Bootstrap", "Failed to close state channel: %v", err)
	}
}

// seed gives every resource without a known state its kind's NEW state.
func (s *Services) seed(resources []api.Resource) {
	for _, res := range resources {
		if s.Store.Seed(res.Ref) {
			logging.Debug("StateStore", "Seeded %s as %s", res.Ref, res.Ref.Kind.Profile().New)
		}
	}
}

func newChannel(bc config.BusConfig) state.Channel {
	if !bc.Enabled {
		logging.Debug("Bootstrap", "State bus disabled, state changes stay in this process")
		return state.NewLoopbackChannel()
	}
	return state.NewNATSChannel(state.NATSConfig{
		URL:           bc.NATSURL,
		SubjectPrefix: bc.SubjectPrefix,
		Name:          origin(bc),
	})
}

func origin(bc config.BusConfig) string {
	if bc.Name != "" {
		return bc.Name
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "steward"
	}
	return "steward@" + host
}

func newHistory(hc config.HistoryConfig) history.Recorder {
	if hc.File == "" {
		return history.LogRecorder{}
	}
	return history.Multi{history.LogRecorder{}, history.NewFileRecorder(hc.File)}
}

func layout(sc *config.StewardConfig) command.Layout {
	l := command.DefaultLayout()
	l.ScriptsDir = sc.Paths.RemoteScriptsDir
	l.StopTimeoutSeconds = sc.Control.StopTimeoutSeconds
	if sc.Deploy.DeployScript != "" {
		l.DeployScript = sc.Deploy.DeployScript
	}
	if sc.Deploy.InvokeScript != "" {
		l.InvokeScript = sc.Deploy.InvokeScript
	}
	if sc.Paths.UnitDir != "" {
		l.UnitDir = sc.Paths.UnitDir
	}
	return l
}

func deployConfig(sc *config.StewardConfig) deploy.Config {
	return deploy.Config{
		RemoteScriptsDir: sc.Paths.RemoteScriptsDir,
		LocalScriptsDir:  sc.Paths.LocalScriptsDir,
		TemplateDir:      sc.Paths.TemplateDir,
		StagingDir:       sc.Paths.StagingDir,
		DeployScript:     sc.Deploy.DeployScript,
		InvokeScript:     sc.Deploy.InvokeScript,
		ArchiveTemplates: fileTemplates(sc.Deploy.ArchiveTemplates),
		ResourceFiles:    fileTemplates(sc.Deploy.ResourceFiles),
	}
}

// fileTemplates converts configured templates. Kinds were validated when
// the configuration was loaded.
func fileTemplates(in []config.FileTemplate) []deploy.FileTemplate {
	out := make([]deploy.FileTemplate, 0, len(in))
	for _, t := range in {
		ft := deploy.FileTemplate{Template: t.Template, Path: t.Path}
		for _, k := range t.Kinds {
			if kind, err := api.ParseResourceKind(strings.TrimSpace(k)); err == nil {
				ft.Kinds = append(ft.Kinds, kind)
			}
		}
		out = append(out, ft)
	}
	return out
}
