package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/api"
	"steward/internal/config"
	"steward/internal/deploy"
	"steward/internal/history"
	"steward/internal/state"
	"steward/pkg/logging"
)

const resourcesYAML = `
resources:
  - kind: jvm
    id: "7"
    name: jvm-7
    host: app01
    platform: windows
    instanceDir: /opt/instances
  - kind: webserver
    id: "3"
    name: ws-3
    host: web01
    platform: linux
`

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resources.yaml"), []byte(resourcesYAML), 0o644))

	sc := config.GetDefaultConfig()
	sc.SSH.User = "deploy"
	sc.Paths.ResourcesFile = filepath.Join(dir, "resources.yaml")
	sc.Paths.StagingDir = filepath.Join(dir, "staging")
	sc.Metrics.Address = freeAddress(t)
	sc.Deploy.ResourceFiles = []config.FileTemplate{{Template: "ctx.tmpl", Path: "conf/ctx.xml", Kinds: []string{"JVM", "bogus"}}}

	cfg := NewConfig(false, true, dir)
	cfg.StewardConfig = &sc
	return cfg
}

func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestInitializeServices_SeedsStore(t *testing.T) {
	services, err := InitializeServices(testConfig(t))
	require.NoError(t, err)
	defer services.Close()

	states := services.Store.List()
	require.Len(t, states, 2)
	for _, cs := range states {
		assert.Equal(t, api.StateNew, cs.State)
	}
	_, isLoopback := services.Channel.(*state.LoopbackChannel)
	assert.True(t, isLoopback, "disabled bus stays in process")
}

func TestInitializeServices_MissingResources(t *testing.T) {
	cfg := testConfig(t)
	cfg.StewardConfig.Paths.ResourcesFile = filepath.Join(t.TempDir(), "nope.yaml")

	_, err := InitializeServices(cfg)
	assert.Error(t, err)
}

func TestInitializeServices_RequiresConfig(t *testing.T) {
	_, err := InitializeServices(NewConfig(false, true, ""))
	assert.Error(t, err)
}

func TestInitializeServices_NATSWhenEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.StewardConfig.Bus.Enabled = true
	cfg.StewardConfig.Bus.Name = "steward-test"

	services, err := InitializeServices(cfg)
	require.NoError(t, err)
	_, isNATS := services.Channel.(*state.NATSChannel)
	assert.True(t, isNATS)
}

func TestLayoutAndDeployConfig(t *testing.T) {
	sc := testConfig(t).StewardConfig
	sc.Paths.RemoteScriptsDir = "/opt/steward/scripts"
	sc.Control.StopTimeoutSeconds = 15

	l := layout(sc)
	assert.Equal(t, "/opt/steward/scripts", l.ScriptsDir)
	assert.Equal(t, 15, l.StopTimeoutSeconds)
	assert.Equal(t, "invoke-service.sh", l.InvokeScript)

	dc := deployConfig(sc)
	require.Len(t, dc.ResourceFiles, 1)
	assert.Equal(t, []api.ResourceKind{api.KindJVM}, dc.ResourceFiles[0].Kinds)
	assert.True(t, dc.ResourceFiles[0].AppliesTo(api.KindJVM))
	assert.False(t, dc.ResourceFiles[0].AppliesTo(api.KindWebServer))
	assert.IsType(t, deploy.Config{}, dc)
}

func TestRunServe_MetricsAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	services, err := InitializeServices(cfg)
	require.NoError(t, err)
	defer services.Close()
	require.NoError(t, services.Start(context.Background()))
	services.Metrics.RecordStateReport("applied")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg, services) }()

	url := fmt.Sprintf("http://%s%s", cfg.StewardConfig.Metrics.Address, cfg.StewardConfig.Metrics.Path)
	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
	assert.Contains(t, body, "steward_state_reports_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestLogHistoryEvents_LogsPeerNotifications(t *testing.T) {
	services, err := InitializeServices(testConfig(t))
	require.NoError(t, err)
	defer services.Close()
	require.NoError(t, services.Start(context.Background()))

	var out syncBuffer
	logging.InitForCLI(logging.LevelInfo, &out)
	defer logging.InitForCLI(logging.LevelInfo, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		logHistoryEvents(ctx, services)
		close(done)
	}()

	// another steward process on the same channel
	peer := state.NewBus(state.NewStore(), services.Channel, state.WithOrigin("steward-cli#1"))
	res := api.Resource{Ref: api.ResourceRef{Kind: api.KindJVM, ID: "7"}, Name: "jvm-7"}
	event := history.NewEvent(res, "DELETE_SERVICE", history.UserAction, "alice")

	require.Eventually(t, func() bool {
		_ = peer.Record(ctx, event)
		return strings.Contains(out.String(), "JVM jvm-7: DELETE_SERVICE (actor alice)")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("logHistoryEvents did not stop")
	}
}

func TestServices_NotificationsAreBroadcast(t *testing.T) {
	services, err := InitializeServices(testConfig(t))
	require.NoError(t, err)
	defer services.Close()
	require.NoError(t, services.Start(context.Background()))

	channel, ok := services.Channel.(*state.LoopbackChannel)
	require.True(t, ok)

	res := api.Resource{Ref: api.ResourceRef{Kind: api.KindJVM, ID: "7"}, Name: "jvm-7"}
	require.NoError(t, services.Bus.Record(context.Background(), history.NewEvent(res, "INVOKE_SERVICE", history.UserAction, "alice")))

	broadcasts := channel.Broadcasts()
	require.Len(t, broadcasts, 1)
	env, err := state.DecodeEnvelope(broadcasts[0])
	require.NoError(t, err)
	require.NotNil(t, env.Event)
	assert.Equal(t, "INVOKE_SERVICE", env.Event.Text)
	assert.Equal(t, services.Bus.Origin(), env.Origin)
	assert.True(t, strings.HasSuffix(env.Origin, fmt.Sprintf("#%d", os.Getpid())))
}
