// Package control runs one control operation against a managed resource
// from end to end.
//
// Each call to Orchestrator.Control walks the same sequence: resolve the
// resource, record a history event, announce the transition, build the
// platform command, execute it, classify the outcome, update the state
// store and notify observers. There is no per-resource machine state beyond
// the state store, and control operations are not serialized against each
// other or against a running deployment.
//
// Failures are split the same way the executor splits them. A command that
// ran and failed is returned as a failed command.Outcome with a nil error;
// the caller decides whether to turn it into an error with Outcome.Err. A
// transport failure is returned as *api.TransportError after FAILED has been
// published.
//
// The file primitives (CreateDirectory, ChangeFileMode, SecureCopy, Run) are
// used by the deployment pipeline. They execute and classify but do not
// publish state.
package control
