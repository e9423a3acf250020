package api

import "strings"

// LifecycleState is the operational status of a resource. The valid values
// depend on the resource kind; see KindProfile.
type LifecycleState string

const (
	StateNew           LifecycleState = "NEW"
	StateStarting      LifecycleState = "STARTING"
	StateStopping      LifecycleState = "STOPPING"
	StateForcedStopped LifecycleState = "FORCED_STOPPED"
	StateFailed        LifecycleState = "FAILED"

	// JVM states
	StateStarted LifecycleState = "STARTED"
	StateStopped LifecycleState = "STOPPED"
	// StateJVMStopped is reported by a JVM's own agent. It says nothing about
	// whether the owning host service has stopped.
	StateJVMStopped LifecycleState = "JVM_STOPPED"

	// Web server states
	StateReachable   LifecycleState = "REACHABLE"
	StateUnreachable LifecycleState = "UNREACHABLE"
)

// KindProfile describes the lifecycle vocabulary of one resource kind.
type KindProfile struct {
	Kind  ResourceKind
	Label string

	New           LifecycleState
	Started       LifecycleState
	Ready         LifecycleState
	ForcedStopped LifecycleState
	Failed        LifecycleState

	// SelfReportedStopped is the state an agent reports when the managed
	// process sees itself as stopped. Empty when the kind has no agent.
	SelfReportedStopped LifecycleState

	// ArchiveExt is the extension of the packaged configuration archive.
	ArchiveExt string

	known map[LifecycleState]bool
}

var (
	jvmProfile = KindProfile{
		Kind:                KindJVM,
		Label:               "JVM",
		New:                 StateNew,
		Started:             StateStarted,
		Ready:               StateStopped,
		ForcedStopped:       StateForcedStopped,
		Failed:              StateFailed,
		SelfReportedStopped: StateJVMStopped,
		ArchiveExt:          "jar",
		known: map[LifecycleState]bool{
			StateNew: true, StateStarting: true, StateStarted: true, StateStopping: true,
			StateStopped: true, StateForcedStopped: true, StateFailed: true, StateJVMStopped: true,
		},
	}

	webServerProfile = KindProfile{
		Kind:          KindWebServer,
		Label:         "Web Server",
		New:           StateNew,
		Started:       StateReachable,
		Ready:         StateUnreachable,
		ForcedStopped: StateForcedStopped,
		Failed:        StateFailed,
		ArchiveExt:    "zip",
		known: map[LifecycleState]bool{
			StateNew: true, StateStarting: true, StateReachable: true, StateStopping: true,
			StateUnreachable: true, StateForcedStopped: true, StateFailed: true,
		},
	}
)

// Profile returns the lifecycle vocabulary for the kind. Unknown kinds get
// the JVM profile so callers never have to nil-check.
func (k ResourceKind) Profile() KindProfile {
	if k == KindWebServer {
		return webServerProfile
	}
	return jvmProfile
}

// ParseState converts a raw state string into a known state for this kind.
// Matching is case-insensitive.
func (p KindProfile) ParseState(raw string) (LifecycleState, bool) {
	s := LifecycleState(strings.ToUpper(strings.TrimSpace(raw)))
	if p.known[s] {
		return s, true
	}
	return "", false
}

// IsSelfReportedStopped reports whether raw equals the kind's self-reported
// stopped sentinel.
func (p KindProfile) IsSelfReportedStopped(raw string) bool {
	return p.SelfReportedStopped != "" && strings.EqualFold(strings.TrimSpace(raw), string(p.SelfReportedStopped))
}

// TargetState returns the state a successful op leaves the resource in.
// Only START and STOP carry one.
func (p KindProfile) TargetState(op ControlOperation) (LifecycleState, bool) {
	switch op {
	case OpStart:
		return p.Started, true
	case OpStop:
		return p.Ready, true
	default:
		return "", false
	}
}

// TransitionState is the state published optimistically while op runs.
func (p KindProfile) TransitionState(op ControlOperation) (LifecycleState, bool) {
	switch op {
	case OpStart:
		return StateStarting, true
	case OpStop:
		return StateStopping, true
	default:
		return "", false
	}
}

// TerminalStates returns the states that satisfy a wait for op. STOP is
// satisfied by either a clean stop or a forced stop.
func (p KindProfile) TerminalStates(op ControlOperation) []LifecycleState {
	switch op {
	case OpStart:
		return []LifecycleState{p.Started}
	case OpStop:
		return []LifecycleState{p.Ready, p.ForcedStopped}
	default:
		return nil
	}
}
