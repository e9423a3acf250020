package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/api"
	"steward/internal/cli"
	"steward/internal/state"
)

const testConfigYAML = `
ssh:
  user: deploy
metrics:
  enabled: false
`

const testResourcesYAML = `
resources:
  - kind: webserver
    id: "3"
    name: ws-3
    host: web01
    platform: linux
  - kind: jvm
    id: "7"
    name: jvm-7
    host: app01
    instanceDir: /opt/instances
`

// execute runs the root command with args and restores the shared flag
// state afterwards.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	saved := rootFlags
	t.Cleanup(func() {
		rootFlags = saved
		resourcesKind = ""
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(testConfigYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resources.yaml"), []byte(testResourcesYAML), 0o644))
	return dir
}

func TestParseRef(t *testing.T) {
	ref, err := parseRef("ws", "3")
	require.NoError(t, err)
	assert.Equal(t, api.ResourceRef{Kind: api.KindWebServer, ID: "3"}, ref)

	_, err = parseRef("tomcat", "1")
	assert.Error(t, err)

	_, err = parseRef("jvm", "")
	assert.Error(t, err)
}

func TestResolveActor(t *testing.T) {
	assert.Equal(t, api.Actor("alice"), resolveActor(cli.CommandFlags{Actor: "alice"}))

	t.Setenv("USER", "bob")
	assert.Equal(t, api.Actor("bob"), resolveActor(cli.CommandFlags{}))

	t.Setenv("USER", "")
	assert.Equal(t, api.SystemActor, resolveActor(cli.CommandFlags{}))
}

func TestResourceRows(t *testing.T) {
	jvm := api.Resource{Ref: api.ResourceRef{Kind: api.KindJVM, ID: "7"}, Name: "jvm-7"}
	ws := api.Resource{Ref: api.ResourceRef{Kind: api.KindWebServer, ID: "3"}, Name: "ws-3"}
	observed := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	store := state.NewStore()
	store.Update(api.CurrentState{Ref: ws.Ref, State: api.StateReachable, ObservedAt: observed})

	rows := resourceRows([]api.Resource{ws, jvm}, store, "")
	require.Len(t, rows, 2)
	assert.Equal(t, "7", rows[0].ID)
	assert.Equal(t, api.StateNew, rows[0].State)
	assert.Nil(t, rows[0].Since)
	assert.Equal(t, api.StateReachable, rows[1].State)
	require.NotNil(t, rows[1].Since)
	assert.Equal(t, observed, *rows[1].Since)

	rows = resourceRows([]api.Resource{ws, jvm}, store, api.KindWebServer)
	require.Len(t, rows, 1)
	assert.Equal(t, "ws-3", rows[0].Name)
}

func TestControlCmd_RejectsBadArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing operation", args: []string{"control", "jvm", "7"}},
		{name: "unknown kind", args: []string{"control", "tomcat", "7", "stop"}},
		{name: "unknown operation", args: []string{"control", "jvm", "7", "restart"}},
		{name: "secure copy", args: []string{"control", "jvm", "7", "secure-copy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestDeployCmd_RequiresKindAndID(t *testing.T) {
	_, err := execute(t, "deploy", "jvm")
	assert.Error(t, err)
}

func TestResourcesList(t *testing.T) {
	dir := writeConfigDir(t)

	out, err := execute(t, "resources", "list", "--config-path", dir, "-o", "json", "-q")
	require.NoError(t, err)

	var rows []cli.ResourceRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, api.KindJVM, rows[0].Kind)
	assert.Equal(t, api.StateNew, rows[0].State)
	assert.Equal(t, "web01", rows[1].Host)
}

func TestControlCmd_UnknownResource(t *testing.T) {
	dir := writeConfigDir(t)

	_, err := execute(t, "control", "jvm", "99", "stop", "--config-path", dir, "-q")
	require.Error(t, err)
	assert.Equal(t, ExitCodeNotFound, getExitCode(err))
}
