// Package remote runs commands and copies files on managed hosts.
//
// A Transport is the raw secure-shell capability: run one command line and
// report its exit code and streams, or copy one local file to a remote path.
// SSHTransport implements it with golang.org/x/crypto/ssh and
// github.com/pkg/sftp, opening one connection per call.
//
// The Executor sits on top of a Transport and turns a command.Command into a
// command.Outcome. It distinguishes two kinds of failure:
//
//   - The host could not be reached, authentication failed, the session
//     broke, or the configured timeout elapsed. These are returned as
//     *api.TransportError and are never retried.
//   - The command ran and exited non-zero. This is a normal Outcome.
//
// A file copy whose session was established but whose remote file I/O failed
// is reported as an Outcome with exit code 1 and the error text on stderr.
package remote
