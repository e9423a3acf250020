package api

import (
	"errors"
	"fmt"
)

// NotFoundError represents a resource not found error with contextual information.
// This standardized error type provides consistent error handling across all
// operations for cases where requested resources don't exist in the system.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	// (e.g., "jvm", "webserver", "template")
	ResourceType string

	// ResourceName is the specific identifier of the resource that was not found
	ResourceName string

	// Message provides a custom error message if the default format is insufficient
	Message string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
//
// Example:
//
//	res, err := provider.Get(ctx, ref)
//	if api.IsNotFound(err) {
//	    return fmt.Errorf("no such resource: %s", ref)
//	}
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// NewResourceNotFoundError creates a not found error for a managed resource.
//
// Args:
//   - ref: The reference that could not be resolved
//
// Returns:
//   - *NotFoundError: A NotFoundError naming the resource kind and id
func NewResourceNotFoundError(ref ResourceRef) *NotFoundError {
	return NewNotFoundError(string(ref.Kind), ref.ID)
}

// TransportError reports that a remote host could not be reached or the
// secure shell session could not be authenticated or completed. It is
// distinct from a command that ran and returned a non-zero exit code.
//
// Transport errors are never retried automatically.
type TransportError struct {
	// Host is the remote host the operation targeted
	Host string

	// Op names the transport step that failed ("dial", "session", "copy", "timeout")
	Op string

	// Err is the underlying cause
	Err error
}

// Error implements the error interface for TransportError.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s to %s failed: %v", e.Op, e.Host, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError checks if an error is or wraps a TransportError.
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// CommandFailure reports that a remote command ran and returned an exit code
// classified as a failure.
type CommandFailure struct {
	// Ref is the resource the command targeted
	Ref ResourceRef

	// Operation is the control operation that failed
	Operation ControlOperation

	// ExitCode is the raw remote exit code
	ExitCode int

	// Description is the static description looked up for ExitCode
	Description string

	// Detail is the remote command's own diagnostic text, when available
	Detail string
}

// Error implements the error interface for CommandFailure. The remote
// diagnostic text is preferred over the static description.
func (e *CommandFailure) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Description
	}
	return fmt.Sprintf("%s on %s was not successful (return code %d): %s", e.Operation, e.Ref, e.ExitCode, msg)
}

// IsCommandFailure checks if an error is or wraps a CommandFailure.
func IsCommandFailure(err error) bool {
	var failure *CommandFailure
	return errors.As(err, &failure)
}

// PreconditionError reports that a resource is in the wrong lifecycle state
// for the requested operation. It is raised before any remote call is made.
type PreconditionError struct {
	Ref       ResourceRef
	State     LifecycleState
	Operation string
	Reason    string
}

// Error implements the error interface for PreconditionError.
func (e *PreconditionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s %s in state %s: %s", e.Operation, e.Ref, e.State, e.Reason)
	}
	return fmt.Sprintf("cannot %s %s in state %s", e.Operation, e.Ref, e.State)
}

// IsPreconditionError checks if an error is or wraps a PreconditionError.
func IsPreconditionError(err error) bool {
	var preErr *PreconditionError
	return errors.As(err, &preErr)
}

// PipelineStepError wraps the error of the deployment step that aborted a
// pipeline, keeping the step identity for diagnostics.
type PipelineStepError struct {
	Ref  ResourceRef
	Step string
	Err  error
}

// Error implements the error interface for PipelineStepError.
func (e *PipelineStepError) Error() string {
	return fmt.Sprintf("deployment of %s failed at step %s: %v", e.Ref, e.Step, e.Err)
}

// Unwrap returns the originating step error.
func (e *PipelineStepError) Unwrap() error {
	return e.Err
}

// IsPipelineStepError checks if an error is or wraps a PipelineStepError.
func IsPipelineStepError(err error) bool {
	var stepErr *PipelineStepError
	return errors.As(err, &stepErr)
}
