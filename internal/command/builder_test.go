package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/api"
)

func testResource(platform api.Platform) api.Resource {
	return api.Resource{
		Ref:         api.ResourceRef{Kind: api.KindJVM, ID: "7"},
		Name:        "jvm-7",
		Host:        "app01",
		Platform:    platform,
		InstanceDir: "/opt/instances",
	}
}

func testLayout() Layout {
	layout := DefaultLayout()
	layout.ScriptsDir = "/opt/steward/scripts"
	return layout
}

func TestBuilders_For(t *testing.T) {
	builders := NewBuilders(testLayout())

	b, err := builders.For(testResource(api.PlatformLinux))
	require.NoError(t, err)
	assert.Equal(t, api.PlatformLinux, b.Platform())

	b, err = builders.For(testResource(""))
	require.NoError(t, err)
	assert.Equal(t, api.PlatformWindows, b.Platform())

	_, err = builders.For(testResource("plan9"))
	assert.Error(t, err)
}

func TestWindowsBuilder(t *testing.T) {
	builders := NewBuilders(testLayout())
	res := testResource(api.PlatformWindows)

	tests := []struct {
		name     string
		op       api.ControlOperation
		args     []string
		expected string
	}{
		{name: "start", op: api.OpStart, expected: "sc.exe start 'jvm-7'"},
		{name: "stop", op: api.OpStop, expected: "'./stop-service.sh' 'jvm-7' 60"},
		{name: "delete", op: api.OpDeleteService, expected: "sc.exe delete 'jvm-7'"},
		{
			name:     "invoke",
			op:       api.OpInvokeService,
			expected: "'./invoke-service.sh' 'jvm-7' '/opt/instances/jvm-7/bin/invoke.bat'",
		},
		{
			name:     "create directory",
			op:       api.OpCreateDirectory,
			args:     []string{"/opt/steward/scripts"},
			expected: "if [ ! -e '/opt/steward/scripts' ]; then mkdir -p '/opt/steward/scripts'; fi",
		},
		{
			name:     "change file mode keeps glob",
			op:       api.OpChangeFileMode,
			args:     []string{"a+x", "/opt/steward/scripts", "*.sh"},
			expected: "chmod 'a+x' '/opt/steward/scripts'/*.sh",
		},
		{
			name:     "check file exists",
			op:       api.OpCheckFileExists,
			args:     []string{"/opt/instances/it's.xml"},
			expected: `test -e '/opt/instances/it'\''s.xml'`,
		},
		{
			name:     "deploy archive",
			op:       api.OpDeployConfigArchive,
			args:     []string{"jvm-7_config.jar"},
			expected: "'./deploy-config-archive.sh' 'jvm-7_config.jar' '/opt/instances' 'jvm-7'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := builders.Build(tt.op, res, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.op, cmd.Operation)
			assert.Equal(t, tt.expected, cmd.Line)
			assert.Nil(t, cmd.Copy)
		})
	}
}

func TestBuild_SecureCopy(t *testing.T) {
	builders := NewBuilders(testLayout())

	cmd, err := builders.Build(api.OpSecureCopy, testResource(api.PlatformLinux), "/tmp/a.jar", "/opt/a.jar")
	require.NoError(t, err)
	require.NotNil(t, cmd.Copy)
	assert.Equal(t, "/tmp/a.jar", cmd.Copy.Source)
	assert.Equal(t, "/opt/a.jar", cmd.Copy.Destination)
	assert.Empty(t, cmd.Line)
}

func TestBuild_MissingArguments(t *testing.T) {
	builders := NewBuilders(testLayout())
	res := testResource(api.PlatformWindows)

	for _, op := range []api.ControlOperation{
		api.OpSecureCopy, api.OpCreateDirectory, api.OpChangeFileMode,
		api.OpCheckFileExists, api.OpBackUpConfigFile, api.OpDeployConfigArchive,
	} {
		t.Run(string(op), func(t *testing.T) {
			_, err := builders.Build(op, res)
			assert.Error(t, err)
		})
	}

	_, err := builders.Build(api.OpCreateDirectory, res, "")
	assert.Error(t, err)
}

func TestLinuxBuilder(t *testing.T) {
	builders := NewBuilders(testLayout())
	res := testResource(api.PlatformLinux)

	cmd, err := builders.Build(api.OpStart, res)
	require.NoError(t, err)
	assert.Equal(t, "sudo systemctl start 'jvm-7.service'", cmd.Line)

	cmd, err = builders.Build(api.OpDeleteService, res)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cmd.Line, "if ! systemctl cat 'jvm-7.service' >/dev/null 2>&1; then exit 123; fi;"))
	assert.Contains(t, cmd.Line, "sudo rm -f '/etc/systemd/system/jvm-7.service'")

	cmd, err = builders.Build(api.OpInvokeService, res)
	require.NoError(t, err)
	assert.Contains(t, cmd.Line, "sudo tee '/etc/systemd/system/jvm-7.service'")
	assert.Contains(t, cmd.Line, "ExecStart=/opt/instances/jvm-7/bin/invoke.sh start")
	assert.Contains(t, cmd.Line, "WantedBy=multi-user.target")
	assert.True(t, strings.HasSuffix(cmd.Line, "sudo systemctl enable 'jvm-7.service'"))
}

func TestUnitName(t *testing.T) {
	res := testResource(api.PlatformLinux)
	assert.Equal(t, "jvm-7.service", UnitName(res))

	res.ServiceName = "app server"
	name := UnitName(res)
	assert.NotContains(t, name, " ")
	assert.True(t, strings.HasSuffix(name, ".service"))
}

func TestUnitFile(t *testing.T) {
	content, err := UnitFile(testResource(api.PlatformLinux))
	require.NoError(t, err)
	assert.Contains(t, content, "[Unit]")
	assert.Contains(t, content, "Description=steward managed JVM jvm-7")
	assert.Contains(t, content, "[Service]")
	assert.Contains(t, content, "WorkingDirectory=/opt/instances/jvm-7")
	assert.True(t, strings.HasSuffix(content, "\n"))
}
