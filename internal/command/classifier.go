package command

import "fmt"

// Classification is the categorized meaning of a raw process exit code.
type Classification string

const (
	// Success is a zero exit code.
	Success Classification = "SUCCESS"

	// AbnormalSuccess is treated as success but logged as a warning.
	AbnormalSuccess Classification = "ABNORMAL_SUCCESS"

	// ProcessKilled means the helper script had to kill the process to stop
	// it. Treated as a forced-stop success.
	ProcessKilled Classification = "PROCESS_KILLED"

	// ServiceAbsent means the host-level service registration does not
	// exist. Delete-style operations treat it as success.
	ServiceAbsent Classification = "SERVICE_ABSENT"

	// GenericFailure is every other non-zero exit code.
	GenericFailure Classification = "GENERIC_FAILURE"
)

// Exit codes with a fixed meaning across the helper scripts and platforms.
const (
	ExitSuccess         = 0
	ExitFailed          = 1
	ExitNoSuchService   = 123
	ExitTimedOut        = 124
	ExitFastFail        = 125
	ExitAbnormalSuccess = 126
	ExitNoOp            = 127
	ExitProcessKilled   = 255

	// ExitWindowsServiceAbsent is ERROR_SERVICE_DOES_NOT_EXIST from sc.exe.
	ExitWindowsServiceAbsent = 1060
)

// ForcedStoppedMessage replaces the output of a command whose process had to
// be killed.
const ForcedStoppedMessage = "FORCED STOPPED"

var descriptions = map[int]string{
	ExitSuccess:              "Success",
	ExitFailed:               "The command failed",
	2:                        "Invalid arguments were passed to the command",
	5:                        "Access is denied",
	ExitNoSuchService:        "The service does not exist",
	ExitTimedOut:             "The operation timed out",
	ExitFastFail:             "The service stopped immediately after starting",
	ExitAbnormalSuccess:      "The service was stopped abnormally",
	ExitNoOp:                 "No operation was performed; the command was not found",
	ExitProcessKilled:        "The process was killed",
	1056:                     "An instance of the service is already running",
	ExitWindowsServiceAbsent: "The specified service does not exist as an installed service",
	1062:                     "The service has not been started",
	1073:                     "The specified service already exists",
}

// Classify maps an exit code to its Classification. It is total over the
// integers and has no side effects.
func Classify(exitCode int) Classification {
	switch exitCode {
	case ExitSuccess:
		return Success
	case ExitAbnormalSuccess:
		return AbnormalSuccess
	case ExitProcessKilled:
		return ProcessKilled
	case ExitNoSuchService, ExitWindowsServiceAbsent:
		return ServiceAbsent
	default:
		return GenericFailure
	}
}

// Describe returns the human-readable description of an exit code. Unknown
// codes get a generic description rather than an error.
func Describe(exitCode int) string {
	if desc, ok := descriptions[exitCode]; ok {
		return desc
	}
	return fmt.Sprintf("Unrecognized return code %d", exitCode)
}
