package remote

import "context"

// Transport is the secure remote transport used by the Executor.
//
// RunCommand returns a non-nil error only when the command could not be run
// to completion. A command that ran and exited non-zero reports its exit
// code with a nil error.
//
// CopyFile returns *api.TransportError when the host could not be reached
// and a plain error when the transfer itself failed.
type Transport interface {
	RunCommand(ctx context.Context, host, line string) (exitCode int, stdout, stderr string, err error)
	CopyFile(ctx context.Context, host, localPath, remotePath string) error
}
