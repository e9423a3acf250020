// Package api defines the domain vocabulary shared by every steward component:
// resource references and metadata, lifecycle states per resource kind,
// control operations, the current state record, and the typed errors that
// cross package boundaries.
//
// # Resource kinds
//
// Two kinds of resources are managed: application server JVMs and web
// servers. Each kind has a KindProfile that names its new, started, ready
// (cleanly stopped), forced-stopped and failed states, plus the sentinel a
// remote agent uses when the managed process reports itself as stopped.
//
// # Error taxonomy
//
//   - TransportError: the host could not be reached or the session failed
//   - CommandFailure: the remote command returned a failure exit code
//   - PreconditionError: the resource is in the wrong state; nothing ran
//   - PipelineStepError: a deployment step failed; wraps the step's error
//   - NotFoundError: the resource metadata provider does not know the id
//
// All of them support errors.As through the IsXxx helpers.
package api
