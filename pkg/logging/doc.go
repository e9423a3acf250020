// Package logging provides the structured logging used across steward.
//
// It wraps the standard slog package with a subsystem-oriented API so every
// component logs in the same shape:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//
//	logging.Info("Control", "Executing %s on %s", op, host)
//	logging.Warn("StateBus", "Dropping unparseable report from %s", src)
//	logging.Error("Deploy", err, "Step %s failed for %s", step, ref)
//
// # Subsystems
//
//   - Bootstrap: application initialization and wiring
//   - Config: configuration loading and validation
//   - Control: control operations against managed resources
//   - Executor: remote command execution
//   - StateStore / StateBus: current state tracking and synchronization
//   - Deploy: deployment pipeline steps
//   - Resources: resource metadata loading
//
// # Audit Logging
//
// Operator actions are additionally emitted as audit events:
//
//	logging.Audit(logging.AuditEvent{
//	    Action:  "STOP",
//	    Outcome: "USER_ACTION",
//	    Actor:   "alice",
//	    Target:  "JVM jvm-7",
//	})
//
// Audit events are logged at INFO level with an [AUDIT] prefix.
//
// All functions are safe for concurrent use. Messages logged before
// InitForCLI is called are discarded unless they are warnings or errors,
// which fall back to stderr.
package logging
