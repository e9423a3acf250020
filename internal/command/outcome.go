package command

import (
	"strings"

	"steward/internal/api"
)

// Outcome is the immutable result of one executed remote command.
type Outcome struct {
	Classification Classification `json:"classification"`
	ExitCode       int            `json:"exitCode"`
	Stdout         string         `json:"stdout,omitempty"`
	Stderr         string         `json:"stderr,omitempty"`
}

// NewOutcome classifies a raw exit code and captured streams.
func NewOutcome(exitCode int, stdout, stderr string) Outcome {
	return Outcome{
		Classification: Classify(exitCode),
		ExitCode:       exitCode,
		Stdout:         stdout,
		Stderr:         stderr,
	}
}

// Succeeded reports whether the outcome counts as success for op.
// SERVICE_ABSENT only succeeds for delete-style operations.
func (o Outcome) Succeeded(op api.ControlOperation) bool {
	switch o.Classification {
	case Success, AbnormalSuccess, ProcessKilled:
		return true
	case ServiceAbsent:
		return op.IsDeleteStyle()
	default:
		return false
	}
}

// Description is the static description of the raw exit code.
func (o Outcome) Description() string {
	return Describe(o.ExitCode)
}

// Diagnostic returns the remote command's own diagnostic text, preferring
// stderr over stdout. Empty when the command printed nothing.
func (o Outcome) Diagnostic() string {
	if s := strings.TrimSpace(o.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(o.Stdout)
}

// Err converts a failed outcome into a *api.CommandFailure. It returns nil
// when the outcome succeeded for op.
func (o Outcome) Err(ref api.ResourceRef, op api.ControlOperation) error {
	if o.Succeeded(op) {
		return nil
	}
	return &api.CommandFailure{
		Ref:         ref,
		Operation:   op,
		ExitCode:    o.ExitCode,
		Description: o.Description(),
		Detail:      o.Diagnostic(),
	}
}
