package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"steward/internal/api"
	"steward/pkg/logging"
)

const defaultDialTimeout = 30 * time.Second

// SSHConfig holds the credentials and connection settings shared by every
// managed host.
type SSHConfig struct {
	User           string
	Password       string
	PrivateKeyFile string
	// KnownHostsFile enables host key verification. When empty every host
	// key is accepted.
	KnownHostsFile string
	Port           int
	DialTimeout    time.Duration
}

// SSHTransport implements Transport over secure shell. Each call dials a
// fresh connection.
type SSHTransport struct {
	cfg SSHConfig

	clientConfigOnce sync.Once
	clientConfig     *ssh.ClientConfig
	clientConfigErr  error
}

// NewSSHTransport creates a transport. Credentials are loaded on first use.
func NewSSHTransport(cfg SSHConfig) *SSHTransport {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &SSHTransport{cfg: cfg}
}

func (t *SSHTransport) loadClientConfig() (*ssh.ClientConfig, error) {
	t.clientConfigOnce.Do(func() {
		var auth []ssh.AuthMethod
		if t.cfg.PrivateKeyFile != "" {
			key, err := os.ReadFile(t.cfg.PrivateKeyFile)
			if err != nil {
				t.clientConfigErr = fmt.Errorf("failed to read private key: %w", err)
				return
			}
			signer, err := ssh.ParsePrivateKey(key)
			if err != nil {
				t.clientConfigErr = fmt.Errorf("failed to parse private key: %w", err)
				return
			}
			auth = append(auth, ssh.PublicKeys(signer))
		}
		if t.cfg.Password != "" {
			auth = append(auth, ssh.Password(t.cfg.Password))
		}
		if len(auth) == 0 {
			t.clientConfigErr = errors.New("no private key or password configured")
			return
		}

		hostKeyCallback := ssh.InsecureIgnoreHostKey()
		if t.cfg.KnownHostsFile != "" {
			cb, err := knownhosts.New(t.cfg.KnownHostsFile)
			if err != nil {
				t.clientConfigErr = fmt.Errorf("failed to load known hosts: %w", err)
				return
			}
			hostKeyCallback = cb
		} else {
			logging.Warn("Executor", "No known hosts file configured, host keys will not be verified")
		}

		t.clientConfig = &ssh.ClientConfig{
			User:            t.cfg.User,
			Auth:            auth,
			HostKeyCallback: hostKeyCallback,
			Timeout:         t.cfg.DialTimeout,
		}
	})
	return t.clientConfig, t.clientConfigErr
}

func (t *SSHTransport) dial(ctx context.Context, host string) (*ssh.Client, error) {
	clientConfig, err := t.loadClientConfig()
	if err != nil {
		return nil, &api.TransportError{Host: host, Op: "auth", Err: err}
	}

	addr := net.JoinHostPort(host, strconv.Itoa(t.cfg.Port))
	dialer := net.Dialer{Timeout: t.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &api.TransportError{Host: host, Op: "dial", Err: err}
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, &api.TransportError{Host: host, Op: "handshake", Err: err}
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// RunCommand runs line in a new session and waits for it to exit. When ctx
// is done first, RunCommand returns ctx.Err() and the remote command is left
// to finish on its own.
func (t *SSHTransport) RunCommand(ctx context.Context, host, line string) (int, string, string, error) {
	client, err := t.dial(ctx, host)
	if err != nil {
		return 0, "", "", err
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return 0, "", "", &api.TransportError{Host: host, Op: "session", Err: err}
	}

	type result struct {
		exitCode int
		stdout   string
		stderr   string
		err      error
	}
	done := make(chan result, 1)

	go func() {
		defer client.Close()
		defer session.Close()

		var stdout, stderr bytes.Buffer
		session.Stdout = &stdout
		session.Stderr = &stderr

		res := result{}
		if err := session.Run(line); err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				res.exitCode = exitErr.ExitStatus()
			} else {
				res.err = &api.TransportError{Host: host, Op: "session", Err: err}
			}
		}
		res.stdout = stdout.String()
		res.stderr = stderr.String()
		done <- res
	}()

	select {
	case res := <-done:
		return res.exitCode, res.stdout, res.stderr, res.err
	case <-ctx.Done():
		return 0, "", "", ctx.Err()
	}
}

// CopyFile uploads localPath to remotePath over sftp, creating the remote
// parent directory when needed.
func (t *SSHTransport) CopyFile(ctx context.Context, host, localPath, remotePath string) error {
	client, err := t.dial(ctx, host)
	if err != nil {
		return err
	}
	defer client.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return &api.TransportError{Host: host, Op: "sftp", Err: err}
	}
	defer sftpClient.Close()

	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file %s: %w", localPath, err)
	}
	defer local.Close()

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := sftpClient.MkdirAll(dir); err != nil {
			return fmt.Errorf("failed to create remote directory %s: %w", dir, err)
		}
	}

	remote, err := sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}
	if _, err := io.Copy(remote, local); err != nil {
		remote.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", localPath, remotePath, err)
	}
	return remote.Close()
}
