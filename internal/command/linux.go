package command

import (
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"

	"steward/internal/api"
)

const unitHeredoc = "STEWARD_UNIT"

var plainUnitName = regexp.MustCompile(`^[A-Za-z0-9:_.\-]+$`)

// linuxBuilder targets systemd hosts.
type linuxBuilder struct {
	layout Layout
}

func (b *linuxBuilder) Platform() api.Platform { return api.PlatformLinux }

func (b *linuxBuilder) Build(op api.ControlOperation, res api.Resource, args ...string) (Command, error) {
	if cmd, handled, err := buildFileOp(b.layout, op, res, args); handled {
		return cmd, err
	}

	name := UnitName(res)
	switch op {
	case api.OpStart:
		return Command{Operation: op, Line: "sudo systemctl start " + Quote(name)}, nil
	case api.OpStop:
		return buildStop(b.layout, res, name), nil
	case api.OpInvokeService:
		content, err := UnitFile(res)
		if err != nil {
			return Command{}, err
		}
		unitPath := path.Join(b.layout.UnitDir, name)
		line := fmt.Sprintf("sudo tee %s >/dev/null <<'%s'\n%s%s\nsudo systemctl daemon-reload && sudo systemctl enable %s",
			Quote(unitPath), unitHeredoc, content, unitHeredoc, Quote(name))
		return Command{Operation: op, Line: line}, nil
	case api.OpDeleteService:
		unitPath := path.Join(b.layout.UnitDir, name)
		line := fmt.Sprintf("if ! systemctl cat %s >/dev/null 2>&1; then exit %d; fi; "+
			"sudo systemctl disable --now %s && sudo rm -f %s && sudo systemctl daemon-reload",
			Quote(name), ExitNoSuchService, Quote(name), Quote(unitPath))
		return Command{Operation: op, Line: line}, nil
	default:
		return Command{}, fmt.Errorf("operation %s is not supported on %s", op, b.Platform())
	}
}

// UnitName returns the systemd unit name for a resource's service, escaping
// it only when it contains characters systemd does not accept verbatim.
func UnitName(res api.Resource) string {
	service := res.Service()
	if !plainUnitName.MatchString(service) {
		service = unit.UnitNameEscape(service)
	}
	return service + ".service"
}

// UnitFile renders the systemd unit that runs the resource's invoke launcher.
func UnitFile(res api.Resource) (string, error) {
	home := InstanceHome(res)
	launcher := path.Join(home, "bin", LauncherName(api.PlatformLinux))

	opts := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", fmt.Sprintf("steward managed %s", res.Label())),
		unit.NewUnitOption("Unit", "After", "network.target"),
		unit.NewUnitOption("Service", "Type", "forking"),
		unit.NewUnitOption("Service", "WorkingDirectory", home),
		unit.NewUnitOption("Service", "ExecStart", launcher+" start"),
		unit.NewUnitOption("Service", "ExecStop", launcher+" stop"),
		unit.NewUnitOption("Service", "Restart", "no"),
		unit.NewUnitOption("Install", "WantedBy", "multi-user.target"),
	}

	data, err := io.ReadAll(unit.Serialize(opts))
	if err != nil {
		return "", fmt.Errorf("failed to serialize unit for %s: %w", res.Ref, err)
	}
	content := string(data)
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content, nil
}
