package deploy

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/api"
	"steward/internal/command"
	"steward/internal/control"
	"steward/internal/history"
	"steward/internal/lock"
	"steward/internal/remote"
	"steward/internal/remote/remotetest"
	"steward/internal/resource"
	"steward/internal/state"
)

const remoteScripts = "/opt/steward/scripts"

var jvm = api.Resource{
	Ref:         api.ResourceRef{Kind: api.KindJVM, ID: "7"},
	Name:        "jvm-7",
	Host:        "app01",
	Platform:    api.PlatformWindows,
	Groups:      []string{"payments"},
	InstanceDir: "/opt/instances",
	Properties:  map[string]string{"httpPort": "8080"},
}

// legacyJVM has no platform and is treated as a Windows host.
var legacyJVM = api.Resource{
	Ref:         api.ResourceRef{Kind: api.KindJVM, ID: "8"},
	Name:        "jvm-8",
	Host:        "app02",
	InstanceDir: "/opt/instances",
}

var allSteps = []string{
	StepCreateScriptsDir, StepCopyScripts, StepDeleteService, StepRender, StepPackage,
	StepShipArchive, StepDeployArchive, StepShipResourceFiles, StepInstallService, StepMarkReady,
}

type stepLog struct {
	mu     sync.Mutex
	events []string
}

func (l *stepLog) StepStarted(_ api.ResourceRef, step string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "start:"+step)
}

func (l *stepLog) StepFinished(_ api.ResourceRef, step string, _ bool, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "end:"+step)
}

func (l *stepLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fixture struct {
	pipeline  *Pipeline
	transport *remotetest.FakeTransport
	store     *state.Store
	locks     *lock.Registry
	history   *history.Memory
	steps     *stepLog
	staging   string
	channel   *state.LoopbackChannel
	bus       *state.Bus
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	scripts := filepath.Join(root, "scripts")
	templates := filepath.Join(root, "templates")

	writeTestFile(t, filepath.Join(scripts, "deploy-config-archive.sh"), "#!/bin/sh\n")
	writeTestFile(t, filepath.Join(scripts, "invoke-service.sh"), "#!/bin/sh\n")
	writeTestFile(t, filepath.Join(scripts, "start-service.bat"), "@echo off\r\n")
	writeTestFile(t, filepath.Join(scripts, "stop-service.bat"), "@echo off\r\n")
	writeTestFile(t, filepath.Join(templates, "jvm", "base", "conf", "logging.properties"), "level=INFO\n")
	writeTestFile(t, filepath.Join(templates, "jvm", "invoke.bat.tmpl"), "@echo off\nset SERVICE={{ .ServiceName }}\nset HOME={{ .InstanceHome }}\n")
	writeTestFile(t, filepath.Join(templates, "jvm", "server.xml.tmpl"), `<Server name="{{ .Name | upper }}" port="{{ .Properties.httpPort }}"/>`+"\n")
	writeTestFile(t, filepath.Join(templates, "jvm", "context.xml.tmpl"), "<Context path=\"/{{ .Name }}\"/>\n")

	layout := command.DefaultLayout()
	layout.ScriptsDir = remoteScripts

	f := &fixture{
		transport: remotetest.New(),
		store:     state.NewStore(),
		locks:     lock.NewRegistry(),
		history:   &history.Memory{},
		steps:     &stepLog{},
		staging:   filepath.Join(root, "staging"),
	}
	f.channel = state.NewLoopbackChannel()
	bus := state.NewBus(f.store, f.channel, state.WithOrigin("cli"))
	require.NoError(t, bus.Start())
	f.bus = bus
	resources := resource.NewStaticProvider(jvm, legacyJVM)
	orch := control.New(control.Dependencies{
		Resources:  resources,
		Builders:   command.NewBuilders(layout),
		Executor:   remote.NewExecutor(f.transport, 0),
		Store:      f.store,
		Bus:        bus,
		History:    f.history,
		ScriptsDir: remoteScripts,
	})

	f.pipeline = New(Config{
		RemoteScriptsDir: remoteScripts,
		LocalScriptsDir:  scripts,
		TemplateDir:      templates,
		StagingDir:       f.staging,
		ArchiveTemplates: []FileTemplate{
			{Template: "jvm/server.xml.tmpl", Path: "conf/server.xml", Kinds: []api.ResourceKind{api.KindJVM}},
		},
		ResourceFiles: []FileTemplate{
			{Template: "jvm/context.xml.tmpl", Path: "conf/{{ .Name }}-context.xml"},
		},
	}, Dependencies{
		Resources:  resources,
		Controller: orch,
		Locks:      f.locks,
		Store:      f.store,
		Bus:        bus,
		History:    f.history,
		Listener:   f.steps,
	})
	return f
}

func expectedLog() []string {
	var out []string
	for _, s := range allSteps {
		out = append(out, "start:"+s, "end:"+s)
	}
	return out
}

func (f *fixture) lines() []string {
	var out []string
	for _, c := range f.transport.Calls() {
		if !c.IsCopy() {
			out = append(out, c.Line)
		}
	}
	return out
}

func (f *fixture) copies() []string {
	var out []string
	for _, c := range f.transport.Calls() {
		if c.IsCopy() {
			out = append(out, c.Remote)
		}
	}
	return out
}

func TestDeploy_RejectsStartedResource(t *testing.T) {
	f := newFixture(t)
	f.store.Update(api.CurrentState{Ref: jvm.Ref, State: api.StateStarted})

	result, err := f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, api.IsPreconditionError(err))
	assert.Zero(t, f.transport.CallCount())
	assert.Empty(t, f.steps.snapshot())
	assert.Equal(t, api.StateStarted, f.store.StateOf(jvm.Ref))
}

func TestDeploy_RunsEveryStepInOrder(t *testing.T) {
	f := newFixture(t)
	f.store.Update(api.CurrentState{Ref: jvm.Ref, State: api.StateStopped})

	result, err := f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
	require.NoError(t, err)

	assert.Equal(t, expectedLog(), f.steps.snapshot())
	require.Len(t, result.Steps, len(allSteps))
	for i, s := range result.Steps {
		assert.Equal(t, allSteps[i], s.Name)
		assert.False(t, s.Skipped, s.Name)
	}
	assert.Equal(t, api.StateStopped, result.State)
	assert.Equal(t, api.StateStopped, f.store.StateOf(jvm.Ref))

	require.NotNil(t, result.Archive)
	assert.Equal(t, "jvm-7_config.jar", result.Archive.Name)
	assert.Len(t, result.Archive.Digest, 64)
	assert.Equal(t, []string{"/opt/instances/jvm-7/conf/jvm-7-context.xml"}, result.Files)

	lines := strings.Join(f.lines(), "\n")
	assert.Contains(t, lines, "mkdir -p '/opt/steward/scripts'")
	assert.Contains(t, lines, "chmod 'a+x' '/opt/steward/scripts'/*.sh")
	assert.Contains(t, lines, "sc.exe delete 'jvm-7'")
	assert.Contains(t, lines, "'./deploy-config-archive.sh' 'jvm-7_config.jar' '/opt/instances' 'jvm-7'")
	assert.Contains(t, lines, "'./invoke-service.sh' 'jvm-7' '/opt/instances/jvm-7/bin/invoke.bat'")

	assert.Equal(t, []string{
		"/opt/steward/scripts/deploy-config-archive.sh",
		"/opt/steward/scripts/invoke-service.sh",
		"/opt/steward/scripts/jvm-7_config.jar",
		"/opt/instances/jvm-7/conf/jvm-7-context.xml",
	}, f.copies())
}

func TestDeploy_ArchiveContents(t *testing.T) {
	f := newFixture(t)

	result, err := f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
	require.NoError(t, err)

	zr, err := zip.OpenReader(result.Archive.Path)
	require.NoError(t, err)
	defer zr.Close()

	contents := map[string]string{}
	for _, file := range zr.File {
		if strings.HasSuffix(file.Name, "/") {
			contents[file.Name] = ""
			continue
		}
		rc, err := file.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		contents[file.Name] = string(data)
	}

	assert.Contains(t, contents, "jvm-7/")
	assert.Contains(t, contents, "jvm-7/logs/")
	assert.Equal(t, "level=INFO\n", contents["jvm-7/conf/logging.properties"])
	assert.Equal(t, `<Server name="JVM-7" port="8080"/>`+"\n", contents["jvm-7/conf/server.xml"])
	assert.Equal(t, "@echo off\r\nset SERVICE=jvm-7\r\nset HOME=/opt/instances/jvm-7\r\n", contents["jvm-7/bin/invoke.bat"])
	assert.Contains(t, contents, "jvm-7/bin/start-service.bat")
	assert.Contains(t, contents, "jvm-7/bin/stop-service.bat")
}

func TestDeploy_NewResourceSkipsServiceRemoval(t *testing.T) {
	f := newFixture(t)

	result, err := f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
	require.NoError(t, err)

	require.Len(t, result.Steps, len(allSteps))
	assert.Equal(t, StepDeleteService, result.Steps[2].Name)
	assert.True(t, result.Steps[2].Skipped)
	for _, line := range f.lines() {
		assert.NotContains(t, line, "sc.exe delete")
	}
	assert.Equal(t, api.StateStopped, f.store.StateOf(jvm.Ref))
}

func TestDeploy_AbsentServiceCountsAsRemoved(t *testing.T) {
	f := newFixture(t)
	f.store.Update(api.CurrentState{Ref: jvm.Ref, State: api.StateFailed})
	f.transport.On("sc.exe delete", remotetest.Response{ExitCode: 1060})

	_, err := f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
	require.NoError(t, err)
	assert.Equal(t, api.StateStopped, f.store.StateOf(jvm.Ref))
}

func TestDeploy_StepFailureReleasesLock(t *testing.T) {
	f := newFixture(t)
	f.transport.On("deploy-config-archive.sh", remotetest.Response{ExitCode: 1, Stderr: "unzip: cannot find archive"})

	result, err := f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
	require.Error(t, err)
	require.True(t, api.IsPipelineStepError(err))

	var stepErr *api.PipelineStepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepDeployArchive, stepErr.Step)
	assert.Equal(t, jvm.Ref, stepErr.Ref)
	assert.True(t, api.IsCommandFailure(err))
	assert.Contains(t, err.Error(), "unzip: cannot find archive")

	require.NotNil(t, result)
	assert.Len(t, result.Steps, 6)
	assert.Equal(t, api.StateNew, f.store.StateOf(jvm.Ref), "no rollback and no ready marker")

	var failures int
	for _, e := range f.history.Events() {
		if e.Type == history.ApplicationError {
			failures++
		}
	}
	assert.GreaterOrEqual(t, failures, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	handle, err := f.locks.Acquire(ctx, jvm.Ref)
	require.NoError(t, err, "lock must be free after a failed deployment")
	handle.Release()
}

func TestDeploy_TransportErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.transport.On("mkdir -p", remotetest.Response{Err: &api.TransportError{Host: "app01", Op: "dial", Err: assert.AnError}})

	_, err := f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
	require.Error(t, err)
	assert.True(t, api.IsTransportError(err))

	var stepErr *api.PipelineStepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepCreateScriptsDir, stepErr.Step)
	assert.Equal(t, 1, f.transport.CallCount())
}

func TestDeploy_ConcurrentDeploysDoNotInterleave(t *testing.T) {
	f := newFixture(t)
	f.transport.OnCall = func(remotetest.Call) { time.Sleep(time.Millisecond) }

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	log := f.steps.snapshot()
	want := expectedLog()
	require.Len(t, log, 2*len(want))
	assert.Equal(t, want, log[:len(want)])
	assert.Equal(t, want, log[len(want):])
}

func TestDeploy_UnknownResource(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Deploy(context.Background(), api.ResourceRef{Kind: api.KindJVM, ID: "404"}, "alice")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	assert.Zero(t, f.transport.CallCount())
}

func TestDeployFile(t *testing.T) {
	f := newFixture(t)
	f.store.Update(api.CurrentState{Ref: jvm.Ref, State: api.StateStopped})

	result, err := f.pipeline.DeployFile(context.Background(), jvm.Ref, "context.xml.tmpl", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/instances/jvm-7/conf/jvm-7-context.xml"}, result.Files)
	assert.Equal(t, []string{"/opt/instances/jvm-7/conf/jvm-7-context.xml"}, f.copies())
	assert.Equal(t, []string{"start:" + StepDeployFile, "end:" + StepDeployFile}, f.steps.snapshot())

	_, err = f.pipeline.DeployFile(context.Background(), jvm.Ref, "missing.xml", "alice")
	assert.True(t, api.IsNotFound(err))

	f.store.Update(api.CurrentState{Ref: jvm.Ref, State: api.StateStarted})
	_, err = f.pipeline.DeployFile(context.Background(), jvm.Ref, "context.xml.tmpl", "alice")
	assert.True(t, api.IsPreconditionError(err))
}

func TestDeploy_RepeatedRunsProduceIdenticalArchives(t *testing.T) {
	f := newFixture(t)

	first, err := f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
	require.NoError(t, err)
	firstBytes, err := os.ReadFile(first.Archive.Path)
	require.NoError(t, err)

	// Let the clock move so any leaked wall-clock timestamp would show.
	time.Sleep(1100 * time.Millisecond)

	second, err := f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(second.Archive.Path)
	require.NoError(t, err)

	assert.Equal(t, first.Archive.Digest, second.Archive.Digest)
	assert.Equal(t, first.Archive.Entries, second.Archive.Entries)
	assert.True(t, bytes.Equal(firstBytes, secondBytes), "archives differ between runs")

	// the second run starts from STOPPED and removes the registration first
	assert.False(t, second.Steps[2].Skipped)
}

func TestDeploy_MissingPlatformUsesWindowsLayout(t *testing.T) {
	f := newFixture(t)
	f.store.Update(api.CurrentState{Ref: legacyJVM.Ref, State: api.StateStopped})

	result, err := f.pipeline.Deploy(context.Background(), legacyJVM.Ref, "alice")
	require.NoError(t, err)

	zr, err := zip.OpenReader(result.Archive.Path)
	require.NoError(t, err)
	defer zr.Close()

	names := map[string]*zip.File{}
	for _, file := range zr.File {
		names[file.Name] = file
	}
	require.Contains(t, names, "jvm-8/bin/invoke.bat")
	assert.NotContains(t, names, "jvm-8/bin/invoke.sh")
	assert.Contains(t, names, "jvm-8/bin/stop-service.bat")

	rc, err := names["jvm-8/bin/invoke.bat"].Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Contains(t, string(data), "set SERVICE=jvm-8\r\n")

	lines := strings.Join(f.lines(), "\n")
	assert.Contains(t, lines, "sc.exe delete 'jvm-8'")
	assert.Contains(t, lines, "'./invoke-service.sh' 'jvm-8' '/opt/instances/jvm-8/bin/invoke.bat'")
}

func TestDeploy_RejectsResourceStartedByAnotherProcess(t *testing.T) {
	f := newFixture(t)
	serve := state.NewBus(state.NewStore(), f.channel, state.WithOrigin("serve"))
	require.NoError(t, serve.Start())

	serve.Commit(context.Background(), api.CurrentState{Ref: jvm.Ref, State: api.StateStarted, Actor: "bob"})
	require.Equal(t, api.StateStarted, f.store.StateOf(jvm.Ref))

	result, err := f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, api.IsPreconditionError(err))
	assert.Zero(t, f.transport.CallCount())
}

func TestDeploy_RejectsStartedResourceFromPeerSnapshot(t *testing.T) {
	f := newFixture(t)
	peerStore := state.NewStore()
	peerStore.Update(api.CurrentState{Ref: jvm.Ref, State: api.StateStarted, Actor: "bob"})
	serve := state.NewBus(peerStore, f.channel, state.WithOrigin("serve"))
	require.NoError(t, serve.ServeSnapshots())

	n, err := f.bus.Hydrate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
	require.Error(t, err)
	assert.True(t, api.IsPreconditionError(err))
	assert.Zero(t, f.transport.CallCount())
}

func TestDeploy_ReadyStateReachesOtherProcesses(t *testing.T) {
	f := newFixture(t)
	peerStore := state.NewStore()
	serve := state.NewBus(peerStore, f.channel, state.WithOrigin("serve"))
	require.NoError(t, serve.Start())

	_, err := f.pipeline.Deploy(context.Background(), jvm.Ref, "alice")
	require.NoError(t, err)

	cs, ok := peerStore.Get(jvm.Ref)
	require.True(t, ok)
	assert.Equal(t, api.StateStopped, cs.State)
	assert.Equal(t, api.Actor("alice"), cs.Actor)
}
