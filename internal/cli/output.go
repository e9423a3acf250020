package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"steward/internal/api"
	"steward/internal/command"
	"steward/internal/deploy"
)

// OutputFormat selects how results are printed.
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return f, nil
	case "":
		return OutputFormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
	}
}

// Printer renders command results.
type Printer struct {
	out       io.Writer
	format    OutputFormat
	noHeaders bool
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, format OutputFormat, noHeaders bool) *Printer {
	return &Printer{out: out, format: format, noHeaders: noHeaders}
}

// createTable creates a new table with standard styling
func (p *Printer) createTable(headers ...interface{}) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)
	if !p.noHeaders {
		t.AppendHeader(table.Row(headers))
	}
	return t
}

// structured prints v as JSON or YAML. It reports false for table output.
func (p *Printer) structured(v interface{}) (bool, error) {
	switch p.format {
	case OutputFormatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(p.out)
		defer enc.Close()
		return true, enc.Encode(v)
	default:
		return false, nil
	}
}

// ResourceRow is one resource with its current state.
type ResourceRow struct {
	Kind     api.ResourceKind   `json:"kind" yaml:"kind"`
	ID       string             `json:"id" yaml:"id"`
	Name     string             `json:"name" yaml:"name"`
	Host     string             `json:"host" yaml:"host"`
	Platform api.Platform       `json:"platform" yaml:"platform"`
	State    api.LifecycleState `json:"state" yaml:"state"`
	Since    *time.Time         `json:"since,omitempty" yaml:"since,omitempty"`
}

// PrintResources prints resources with their states.
func (p *Printer) PrintResources(rows []ResourceRow) error {
	if ok, err := p.structured(rows); ok {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(p.out, text.FgYellow.Sprint("No resources found"))
		return nil
	}
	t := p.createTable("Kind", "ID", "Name", "Host", "Platform", "State", "Since")
	for _, r := range rows {
		since := "-"
		if r.Since != nil {
			since = r.Since.Local().Format(time.DateTime)
		}
		t.AppendRow(table.Row{r.Kind, r.ID, r.Name, r.Host, r.Platform, ColorState(r.State), since})
	}
	t.Render()
	return nil
}

// OutcomeView is the printable result of a control operation.
type OutcomeView struct {
	Resource       string                 `json:"resource" yaml:"resource"`
	Operation      api.ControlOperation   `json:"operation" yaml:"operation"`
	Classification command.Classification `json:"classification" yaml:"classification"`
	ExitCode       int                    `json:"exitCode" yaml:"exitCode"`
	Description    string                 `json:"description" yaml:"description"`
	Stdout         string                 `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr         string                 `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	State          api.LifecycleState     `json:"state,omitempty" yaml:"state,omitempty"`
	Reached        *bool                  `json:"reached,omitempty" yaml:"reached,omitempty"`
}

// NewOutcomeView builds the view of outcome.
func NewOutcomeView(res api.Resource, op api.ControlOperation, outcome command.Outcome) OutcomeView {
	return OutcomeView{
		Resource:       res.Label(),
		Operation:      op,
		Classification: outcome.Classification,
		ExitCode:       outcome.ExitCode,
		Description:    outcome.Description(),
		Stdout:         strings.TrimSpace(outcome.Stdout),
		Stderr:         strings.TrimSpace(outcome.Stderr),
	}
}

// PrintOutcome prints a control operation result.
func (p *Printer) PrintOutcome(v OutcomeView) error {
	if ok, err := p.structured(v); ok {
		return err
	}
	t := p.createTable("Field", "Value")
	t.AppendRow(table.Row{"Resource", v.Resource})
	t.AppendRow(table.Row{"Operation", v.Operation})
	t.AppendRow(table.Row{"Result", colorClassification(v.Classification)})
	t.AppendRow(table.Row{"Exit code", fmt.Sprintf("%d (%s)", v.ExitCode, v.Description)})
	if v.Stdout != "" {
		t.AppendRow(table.Row{"Output", v.Stdout})
	}
	if v.Stderr != "" {
		t.AppendRow(table.Row{"Errors", v.Stderr})
	}
	if v.State != "" {
		t.AppendRow(table.Row{"State", ColorState(v.State)})
	}
	if v.Reached != nil {
		reached := text.FgGreen.Sprint("yes")
		if !*v.Reached {
			reached = text.FgYellow.Sprint("no, timed out")
		}
		t.AppendRow(table.Row{"Reached", reached})
	}
	t.Render()
	return nil
}

// DeployView is the printable result of a deployment.
type DeployView struct {
	Resource string             `json:"resource" yaml:"resource"`
	State    api.LifecycleState `json:"state" yaml:"state"`
	Archive  string             `json:"archive,omitempty" yaml:"archive,omitempty"`
	Digest   string             `json:"digest,omitempty" yaml:"digest,omitempty"`
	Files    []string           `json:"files,omitempty" yaml:"files,omitempty"`
	Steps    []StepView         `json:"steps" yaml:"steps"`
	Error    string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// StepView is one pipeline step.
type StepView struct {
	Name     string `json:"name" yaml:"name"`
	Status   string `json:"status" yaml:"status"`
	Duration string `json:"duration" yaml:"duration"`
}

// NewDeployView builds the view of a deployment result. failedStep is the
// step that aborted the run, if any.
func NewDeployView(res api.Resource, result *deploy.Result, failedStep string, runErr error) DeployView {
	v := DeployView{Resource: res.Label()}
	if result != nil {
		v.State = result.State
		v.Files = result.Files
		if result.Archive != nil {
			v.Archive = result.Archive.Name
			v.Digest = result.Archive.Digest
		}
		for _, s := range result.Steps {
			status := "done"
			if s.Skipped {
				status = "skipped"
			}
			v.Steps = append(v.Steps, StepView{Name: s.Name, Status: status, Duration: s.Duration.Round(time.Millisecond).String()})
		}
	}
	if failedStep != "" {
		v.Steps = append(v.Steps, StepView{Name: failedStep, Status: "failed", Duration: "-"})
	}
	if runErr != nil {
		v.Error = runErr.Error()
	}
	return v
}

// PrintDeploy prints a deployment result.
func (p *Printer) PrintDeploy(v DeployView) error {
	if ok, err := p.structured(v); ok {
		return err
	}
	t := p.createTable("Step", "Status", "Duration")
	for _, s := range v.Steps {
		status := s.Status
		switch s.Status {
		case "done":
			status = text.FgGreen.Sprint(s.Status)
		case "skipped":
			status = text.FgHiBlack.Sprint(s.Status)
		case "failed":
			status = text.FgRed.Sprint(s.Status)
		}
		t.AppendRow(table.Row{s.Name, status, s.Duration})
	}
	t.Render()

	if v.Archive != "" {
		fmt.Fprintf(p.out, "Archive: %s (blake3 %s)\n", v.Archive, v.Digest)
	}
	if v.State != "" {
		fmt.Fprintf(p.out, "State:   %s\n", ColorState(v.State))
	}
	return nil
}

// ColorState colors a lifecycle state for terminal output.
func ColorState(s api.LifecycleState) string {
	switch s {
	case api.StateStarted, api.StateReachable:
		return text.FgGreen.Sprint(s)
	case api.StateStopped, api.StateUnreachable, api.StateNew:
		return text.FgHiBlack.Sprint(s)
	case api.StateStarting, api.StateStopping, api.StateJVMStopped:
		return text.FgYellow.Sprint(s)
	case api.StateFailed, api.StateForcedStopped:
		return text.FgRed.Sprint(s)
	default:
		return string(s)
	}
}

func colorClassification(c command.Classification) string {
	switch c {
	case command.Success:
		return text.FgGreen.Sprint(c)
	case command.AbnormalSuccess, command.ServiceAbsent, command.ProcessKilled:
		return text.FgYellow.Sprint(c)
	default:
		return text.FgRed.Sprint(c)
	}
}
