package cmd

import (
	"errors"
	"fmt"
	"os"

	"steward/internal/api"
	"steward/internal/cli"
	"steward/internal/config"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodePrecondition indicates the resource was in the wrong state for the operation.
	ExitCodePrecondition = 2
	// ExitCodeNotFound indicates the resource is not defined.
	ExitCodeNotFound = 3
	// ExitCodeTransport indicates the host could not be reached or the command timed out.
	ExitCodeTransport = 4
	// ExitCodeCommandFailed indicates the remote command or a deployment step failed.
	ExitCodeCommandFailed = 5
)

// rootFlags are shared by every subcommand.
var rootFlags cli.CommandFlags

// rootCmd represents the base command for the steward application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "steward",
	Short: "Control and deploy JVMs and web servers on remote hosts",
	Long: `steward starts, stops and deploys JVMs and web servers on Windows and
Linux hosts over SSH. It tracks the lifecycle state of every resource,
exchanges state reports over NATS, and regenerates resource configuration
from templates.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "steward version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		var configErr config.ConfigurationError
		if errors.As(err, &configErr) {
			fmt.Fprintln(os.Stderr, configErr.DetailedError())
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case api.IsPreconditionError(err):
		return ExitCodePrecondition
	case api.IsNotFound(err):
		return ExitCodeNotFound
	case api.IsTransportError(err):
		return ExitCodeTransport
	case api.IsCommandFailure(err), api.IsPipelineStepError(err):
		return ExitCodeCommandFailed
	}

	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return ExitCodeError
}

// exitCodeError carries an explicit exit code for results that are not Go
// errors of a known type, such as a wait that timed out.
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string { return e.msg }

func init() {
	cli.RegisterCommonFlags(rootCmd, &rootFlags)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newControlCmd())
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newResourcesCmd())
}
