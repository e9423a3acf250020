package command

import (
	"fmt"
	"path"

	"steward/internal/api"
)

// windowsBuilder targets Windows hosts reached through a cygwin sshd. Service
// control goes through sc.exe; stop and install go through helper scripts
// so a hung process can be killed (exit 255).
type windowsBuilder struct {
	layout Layout
}

func (b *windowsBuilder) Platform() api.Platform { return api.PlatformWindows }

func (b *windowsBuilder) Build(op api.ControlOperation, res api.Resource, args ...string) (Command, error) {
	if cmd, handled, err := buildFileOp(b.layout, op, res, args); handled {
		return cmd, err
	}

	service := res.Service()
	switch op {
	case api.OpStart:
		return Command{Operation: op, Line: "sc.exe start " + Quote(service)}, nil
	case api.OpStop:
		return buildStop(b.layout, res, service), nil
	case api.OpInvokeService:
		launcher := path.Join(InstanceHome(res), "bin", LauncherName(api.PlatformWindows))
		return Command{
			Operation: op,
			WorkDir:   b.layout.ScriptsDir,
			Line:      fmt.Sprintf("%s %s %s", helper(b.layout.InvokeScript), Quote(service), Quote(launcher)),
		}, nil
	case api.OpDeleteService:
		return Command{Operation: op, Line: "sc.exe delete " + Quote(service)}, nil
	default:
		return Command{}, fmt.Errorf("operation %s is not supported on %s", op, b.Platform())
	}
}
