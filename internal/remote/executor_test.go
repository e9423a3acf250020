package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/api"
	"steward/internal/command"
	"steward/internal/remote/remotetest"
)

func TestExecutor_RunsCommandInWorkDir(t *testing.T) {
	fake := remotetest.New().On("stop-service.sh", remotetest.Response{ExitCode: 255, Stdout: "killed"})
	exec := NewExecutor(fake, 0)

	outcome, err := exec.Execute(context.Background(), "app01", command.Command{
		Operation: api.OpStop,
		WorkDir:   "/opt/scripts",
		Line:      "'./stop-service.sh' 'jvm-7' 60",
	})
	require.NoError(t, err)
	assert.Equal(t, command.ProcessKilled, outcome.Classification)
	assert.Equal(t, 255, outcome.ExitCode)
	assert.Equal(t, "killed", outcome.Stdout)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "app01", calls[0].Host)
	assert.Equal(t, "cd '/opt/scripts' && './stop-service.sh' 'jvm-7' 60", calls[0].Line)
}

func TestExecutor_NonZeroExitIsNotAnError(t *testing.T) {
	fake := remotetest.New().On("sc.exe", remotetest.Response{ExitCode: 1060, Stderr: "no such service"})
	exec := NewExecutor(fake, 0)

	outcome, err := exec.Execute(context.Background(), "app01", command.Command{Operation: api.OpDeleteService, Line: "sc.exe delete 'x'"})
	require.NoError(t, err)
	assert.Equal(t, command.ServiceAbsent, outcome.Classification)
}

func TestExecutor_TransportErrorPassesThrough(t *testing.T) {
	terr := &api.TransportError{Host: "app01", Op: "dial", Err: errors.New("connection refused")}
	fake := remotetest.New().On("", remotetest.Response{Err: terr})
	exec := NewExecutor(fake, 0)

	_, err := exec.Execute(context.Background(), "app01", command.Command{Operation: api.OpStart, Line: "sc.exe start 'x'"})
	require.Error(t, err)
	assert.True(t, api.IsTransportError(err))
	assert.Equal(t, 1, fake.CallCount(), "must not retry")
}

func TestExecutor_UnclassifiedRunErrorBecomesTransportError(t *testing.T) {
	fake := remotetest.New().On("", remotetest.Response{Err: errors.New("channel closed")})
	exec := NewExecutor(fake, 0)

	_, err := exec.Execute(context.Background(), "app01", command.Command{Operation: api.OpStart, Line: "true"})
	var terr *api.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "session", terr.Op)
}

func TestExecutor_Timeout(t *testing.T) {
	fake := remotetest.New()
	fake.OnCall = func(remotetest.Call) { time.Sleep(1100 * time.Millisecond) }
	exec := NewExecutor(fake, 1)

	_, err := exec.Execute(context.Background(), "app01", command.Command{Operation: api.OpStart, Line: "sleep 5"})
	var terr *api.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "timeout", terr.Op)
}

func TestExecutor_Copy(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fake := remotetest.New()
		exec := NewExecutor(fake, 0)

		outcome, err := exec.Execute(context.Background(), "app01", command.Command{
			Operation: api.OpSecureCopy,
			Copy:      &command.CopySpec{Source: "/tmp/a", Destination: "/opt/a"},
		})
		require.NoError(t, err)
		assert.Equal(t, command.Success, outcome.Classification)

		calls := fake.Calls()
		require.Len(t, calls, 1)
		assert.True(t, calls[0].IsCopy())
		assert.Equal(t, "/opt/a", calls[0].Remote)
	})

	t.Run("remote io failure is an outcome", func(t *testing.T) {
		fake := remotetest.New().OnCopy("/opt/a", errors.New("permission denied"))
		exec := NewExecutor(fake, 0)

		outcome, err := exec.Execute(context.Background(), "app01", command.Command{
			Operation: api.OpSecureCopy,
			Copy:      &command.CopySpec{Source: "/tmp/a", Destination: "/opt/a"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.ExitCode)
		assert.Equal(t, "permission denied", outcome.Stderr)
	})

	t.Run("unreachable host is a transport error", func(t *testing.T) {
		fake := remotetest.New().OnCopy("", &api.TransportError{Host: "app01", Op: "dial", Err: errors.New("no route")})
		exec := NewExecutor(fake, 0)

		_, err := exec.Execute(context.Background(), "app01", command.Command{
			Operation: api.OpSecureCopy,
			Copy:      &command.CopySpec{Source: "/tmp/a", Destination: "/opt/a"},
		})
		assert.True(t, api.IsTransportError(err))
	})
}
