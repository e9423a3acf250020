package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/api"
)

type failingRecorder struct{ err error }

func (f failingRecorder) Record(context.Context, Event) error { return f.err }

func testResource() api.Resource {
	return api.Resource{
		Ref:    api.ResourceRef{Kind: api.KindWebServer, ID: "3"},
		Name:   "ws-3",
		Groups: []string{"frontend"},
	}
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(testResource(), "STOPPING", UserAction, "alice")
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "Web Server ws-3", ev.ServerLabel)
	assert.Equal(t, []string{"frontend"}, ev.Groups)
	assert.Equal(t, api.Actor("alice"), ev.Actor)
	assert.False(t, ev.At.IsZero())
}

func TestMulti(t *testing.T) {
	mem := &Memory{}
	boom := errors.New("sink down")
	multi := Multi{failingRecorder{err: boom}, mem, LogRecorder{}}

	err := multi.Record(context.Background(), NewEvent(testResource(), "START", UserAction, "bob"))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, mem.Events(), 1, "a failing recorder must not stop the others")
}

func TestFileRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	rec := NewFileRecorder(path)

	require.NoError(t, rec.Record(context.Background(), NewEvent(testResource(), "DELETE_SERVICE", UserAction, "alice")))
	require.NoError(t, rec.Record(context.Background(), NewEvent(testResource(), "boom", ApplicationError, "alice")))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	assert.Equal(t, "DELETE_SERVICE", events[0].Text)
	assert.Equal(t, ApplicationError, events[1].Type)
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster()
	events, cancel := b.Subscribe()

	require.NoError(t, b.Record(context.Background(), NewEvent(testResource(), "INVOKE_SERVICE", UserAction, "alice")))

	select {
	case ev := <-events:
		assert.Equal(t, "INVOKE_SERVICE", ev.Text)
	default:
		t.Fatal("expected notification")
	}

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
	assert.NoError(t, b.Record(context.Background(), NewEvent(testResource(), "x", UserAction, "alice")))
}
