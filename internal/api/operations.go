package api

import (
	"fmt"
	"strings"
)

// ControlOperation is a discrete lifecycle or maintenance action issued
// against one resource.
type ControlOperation string

const (
	OpStart               ControlOperation = "START"
	OpStop                ControlOperation = "STOP"
	OpInvokeService       ControlOperation = "INVOKE_SERVICE"
	OpDeleteService       ControlOperation = "DELETE_SERVICE"
	OpSecureCopy          ControlOperation = "SECURE_COPY"
	OpCreateDirectory     ControlOperation = "CREATE_DIRECTORY"
	OpChangeFileMode      ControlOperation = "CHANGE_FILE_MODE"
	OpCheckFileExists     ControlOperation = "CHECK_FILE_EXISTS"
	OpBackUpConfigFile    ControlOperation = "BACK_UP_CONFIG_FILE"
	OpDeployConfigArchive ControlOperation = "DEPLOY_CONFIG_ARCHIVE"
)

// AllOperations lists every control operation in declaration order.
var AllOperations = []ControlOperation{
	OpStart, OpStop, OpInvokeService, OpDeleteService, OpSecureCopy,
	OpCreateDirectory, OpChangeFileMode, OpCheckFileExists, OpBackUpConfigFile,
	OpDeployConfigArchive,
}

// ParseControlOperation converts user input such as "stop" or
// "invoke-service" into a ControlOperation.
func ParseControlOperation(s string) (ControlOperation, error) {
	normalized := ControlOperation(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	for _, op := range AllOperations {
		if op == normalized {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown control operation %q", s)
}

// IsDeleteStyle reports whether an "already gone" result counts as success.
func (op ControlOperation) IsDeleteStyle() bool {
	return op == OpDeleteService
}

// IsHistoryEvent reports whether the operation is announced as a discrete
// history notification rather than a state transition.
func (op ControlOperation) IsHistoryEvent() bool {
	switch op {
	case OpDeleteService, OpInvokeService, OpSecureCopy:
		return true
	default:
		return false
	}
}

// EventLabel returns the text recorded in history when the operation is
// requested: the target state label if the operation has one, otherwise the
// operation name.
func (op ControlOperation) EventLabel(kind ResourceKind) string {
	if state, ok := kind.Profile().TargetState(op); ok {
		return string(state)
	}
	return string(op)
}
