// Package history records operator-visible events about managed resources.
//
// Recording is fire-and-forget from the caller's point of view: callers log
// a Record error and carry on.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"steward/internal/api"
	"steward/pkg/logging"
)

// EventType classifies a history event.
type EventType string

const (
	UserAction       EventType = "USER_ACTION"
	ApplicationError EventType = "APPLICATION_ERROR"
)

// Event is one history entry.
type Event struct {
	ID          string          `json:"id"`
	Ref         api.ResourceRef `json:"ref"`
	ServerLabel string          `json:"serverLabel"`
	Groups      []string        `json:"groups,omitempty"`
	Text        string          `json:"text"`
	Type        EventType       `json:"type"`
	Actor       api.Actor       `json:"actor"`
	At          time.Time       `json:"at"`
}

// NewEvent builds an event for res with a fresh id.
func NewEvent(res api.Resource, text string, typ EventType, actor api.Actor) Event {
	return Event{
		ID:          uuid.NewString(),
		Ref:         res.Ref,
		ServerLabel: res.Label(),
		Groups:      res.Groups,
		Text:        text,
		Type:        typ,
		Actor:       actor,
		At:          time.Now(),
	}
}

// Recorder is the history sink.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// LogRecorder writes events as audit log entries.
type LogRecorder struct{}

// Record implements Recorder.
func (LogRecorder) Record(_ context.Context, event Event) error {
	outcome := "success"
	if event.Type == ApplicationError {
		outcome = "failure"
	}
	logging.Audit(logging.AuditEvent{
		Action:   event.Text,
		Outcome:  outcome,
		Actor:    string(event.Actor),
		Target:   event.ServerLabel,
		Groups:   event.Groups,
		Details:  string(event.Type),
		EventID:  event.ID,
		Occurred: event.At,
	})
	return nil
}

// FileRecorder appends events to a file, one JSON object per line.
type FileRecorder struct {
	mu   sync.Mutex
	path string
}

// NewFileRecorder creates a recorder appending to path.
func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{path: path}
}

// Record implements Recorder.
func (r *FileRecorder) Record(_ context.Context, event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode history event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// Multi records to every recorder and joins their errors.
type Multi []Recorder

// Record implements Recorder.
func (m Multi) Record(ctx context.Context, event Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps events in memory.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Record implements Recorder.
func (m *Memory) Record(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
