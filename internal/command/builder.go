package command

import (
	"fmt"
	"path"
	"strings"

	"steward/internal/api"
)

// Command is a concrete, platform-specific command line for one control
// operation.
type Command struct {
	Operation api.ControlOperation
	// Line is executed by the remote shell. Empty for pure file copies.
	Line string
	// WorkDir, when set, is entered before Line runs.
	WorkDir string
	// Copy is non-nil when the operation transfers a local file.
	Copy *CopySpec
}

// CopySpec describes a local file to transfer to the remote host.
type CopySpec struct {
	Source      string
	Destination string
}

// Builder produces command lines for one target platform. It is a pure
// function of its inputs.
type Builder interface {
	Platform() api.Platform
	Build(op api.ControlOperation, res api.Resource, args ...string) (Command, error)
}

// Layout names the remote helper scripts and directories the builders
// reference.
type Layout struct {
	// ScriptsDir is the remote directory holding the operational helpers.
	ScriptsDir string

	StopScript   string
	InvokeScript string
	DeployScript string

	// StopTimeoutSeconds is passed to the stop helper before it forces a kill.
	StopTimeoutSeconds int

	// UnitDir is where systemd unit files are installed on Linux hosts.
	UnitDir string
}

// DefaultLayout returns the helper names shipped with steward.
func DefaultLayout() Layout {
	return Layout{
		ScriptsDir:         ".steward/scripts",
		StopScript:         "stop-service.sh",
		InvokeScript:       "invoke-service.sh",
		DeployScript:       "deploy-config-archive.sh",
		StopTimeoutSeconds: 60,
		UnitDir:            "/etc/systemd/system",
	}
}

// LauncherName returns the invoke launcher file name rendered into the
// configuration archive for a platform.
func LauncherName(platform api.Platform) string {
	if platform == api.PlatformWindows {
		return "invoke.bat"
	}
	return "invoke.sh"
}

// Builders selects a Builder by the resource's platform.
type Builders struct {
	byPlatform map[api.Platform]Builder
}

// NewBuilders returns the Windows and Linux builders for a layout.
func NewBuilders(layout Layout) *Builders {
	return &Builders{
		byPlatform: map[api.Platform]Builder{
			api.PlatformWindows: &windowsBuilder{layout: layout},
			api.PlatformLinux:   &linuxBuilder{layout: layout},
		},
	}
}

// For returns the builder for res's platform.
func (b *Builders) For(res api.Resource) (Builder, error) {
	platform := res.PlatformOrDefault()
	builder, ok := b.byPlatform[platform]
	if !ok {
		return nil, fmt.Errorf("no command builder for platform %q", platform)
	}
	return builder, nil
}

// Build is a convenience that selects the builder and builds in one call.
func (b *Builders) Build(op api.ControlOperation, res api.Resource, args ...string) (Command, error) {
	builder, err := b.For(res)
	if err != nil {
		return Command{}, err
	}
	return builder.Build(op, res, args...)
}

// InstanceHome is the remote directory the resource's archive unpacks to.
func InstanceHome(res api.Resource) string {
	return path.Join(res.InstanceDir, res.Name)
}

func requireArgs(op api.ControlOperation, args []string, n int, names ...string) error {
	if len(args) < n {
		return fmt.Errorf("%s requires %d argument(s) (%s), got %d", op, n, strings.Join(names, ", "), len(args))
	}
	for i := 0; i < n; i++ {
		if args[i] == "" {
			return fmt.Errorf("%s argument %s must not be empty", op, names[i])
		}
	}
	return nil
}

// buildFileOp handles the operations whose shell form is identical on every
// platform (Windows hosts are reached through a POSIX shell).
func buildFileOp(layout Layout, op api.ControlOperation, res api.Resource, args []string) (Command, bool, error) {
	cmd := Command{Operation: op}
	switch op {
	case api.OpSecureCopy:
		if err := requireArgs(op, args, 2, "source", "destination"); err != nil {
			return Command{}, true, err
		}
		cmd.Copy = &CopySpec{Source: args[0], Destination: args[1]}
	case api.OpCreateDirectory:
		if err := requireArgs(op, args, 1, "directory"); err != nil {
			return Command{}, true, err
		}
		dir := Quote(args[0])
		cmd.Line = fmt.Sprintf("if [ ! -e %s ]; then mkdir -p %s; fi", dir, dir)
	case api.OpChangeFileMode:
		if err := requireArgs(op, args, 3, "mode", "directory", "file"); err != nil {
			return Command{}, true, err
		}
		// The file argument may be a glob such as *.sh and is left unquoted.
		cmd.Line = fmt.Sprintf("chmod %s %s/%s", Quote(args[0]), Quote(args[1]), args[2])
	case api.OpCheckFileExists:
		if err := requireArgs(op, args, 1, "path"); err != nil {
			return Command{}, true, err
		}
		cmd.Line = "test -e " + Quote(args[0])
	case api.OpBackUpConfigFile:
		if err := requireArgs(op, args, 2, "source", "backup"); err != nil {
			return Command{}, true, err
		}
		cmd.Line = fmt.Sprintf("cp %s %s", Quote(args[0]), Quote(args[1]))
	case api.OpDeployConfigArchive:
		if err := requireArgs(op, args, 1, "archive"); err != nil {
			return Command{}, true, err
		}
		// A relative archive path is resolved against the scripts directory.
		cmd.WorkDir = layout.ScriptsDir
		cmd.Line = fmt.Sprintf("%s %s %s %s",
			helper(layout.DeployScript), Quote(args[0]), Quote(res.InstanceDir), Quote(res.Name))
	default:
		return Command{}, false, nil
	}
	return cmd, true, nil
}

func buildStop(layout Layout, res api.Resource, service string) Command {
	return Command{
		Operation: api.OpStop,
		WorkDir:   layout.ScriptsDir,
		Line:      fmt.Sprintf("%s %s %d", helper(layout.StopScript), Quote(service), layout.StopTimeoutSeconds),
	}
}

// helper names a script in the scripts directory. Commands that call one run
// with the scripts directory as WorkDir, so the name is relative to it.
func helper(script string) string {
	return Quote("./" + script)
}

// Quote returns s as a single-quoted POSIX shell word.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
