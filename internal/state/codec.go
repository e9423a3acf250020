package state

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"steward/internal/api"
	"steward/internal/history"
)

// Inbound report field names.
const (
	FieldID         = "ID"
	FieldInstanceID = "INSTANCE_ID"
	FieldType       = "TYPE"
	FieldState      = "STATE"
	FieldAsOf       = "AS_OF"
	FieldMessage    = "MESSAGE"
)

// Envelope is the wire form of an outbound state change. Stored marks a
// state the sender wrote to its store; peers store those and only fan out
// the rest. An envelope with an Event carries a history notification and
// no state.
type Envelope struct {
	ID         string         `json:"id"`
	Origin     string         `json:"origin,omitempty"`
	Kind       string         `json:"kind"`
	ResourceID string         `json:"resourceId"`
	State      string         `json:"state,omitempty"`
	Stored     bool           `json:"stored,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	ObservedAt time.Time      `json:"observedAt"`
	Message    string         `json:"message,omitempty"`
	Event      *history.Event `json:"event,omitempty"`
}

func newEnvelope(cs api.CurrentState, origin string, stored bool) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Origin:     origin,
		Kind:       string(cs.Ref.Kind),
		ResourceID: cs.Ref.ID,
		State:      string(cs.State),
		Stored:     stored,
		Actor:      string(cs.Actor),
		ObservedAt: cs.ObservedAt.UTC(),
		Message:    cs.Message,
	}
}

// EncodeState wraps cs in an Envelope with a fresh message id.
func EncodeState(cs api.CurrentState, origin string) ([]byte, error) {
	return json.Marshal(newEnvelope(cs, origin, false))
}

// EncodeEvent wraps a history notification in an Envelope.
func EncodeEvent(event history.Event, origin string) ([]byte, error) {
	return json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Origin:     origin,
		Kind:       string(event.Ref.Kind),
		ResourceID: event.Ref.ID,
		Actor:      string(event.Actor),
		ObservedAt: event.At.UTC(),
		Event:      &event,
	})
}

// DecodeEnvelope parses an outbound state change.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode state envelope: %w", err)
	}
	return env, nil
}

// CurrentState converts the envelope back into a state change.
func (e Envelope) CurrentState() (api.CurrentState, error) {
	kind, err := api.ParseResourceKind(e.Kind)
	if err != nil {
		return api.CurrentState{}, err
	}
	if strings.TrimSpace(e.ResourceID) == "" {
		return api.CurrentState{}, fmt.Errorf("envelope %s has no resource id", e.ID)
	}
	st, ok := kind.Profile().ParseState(e.State)
	if !ok {
		return api.CurrentState{}, fmt.Errorf("unknown %s state %q", kind, e.State)
	}
	return api.CurrentState{
		Ref:        api.ResourceRef{Kind: kind, ID: e.ResourceID},
		State:      st,
		Actor:      api.Actor(e.Actor),
		ObservedAt: e.ObservedAt,
		Message:    e.Message,
	}, nil
}

// Snapshot is a peer's whole state table, the reply to a snapshot request.
type Snapshot struct {
	Origin string     `json:"origin,omitempty"`
	States []Envelope `json:"states"`
}

// EncodeSnapshot encodes states as a Snapshot of stored envelopes.
func EncodeSnapshot(states []api.CurrentState, origin string) ([]byte, error) {
	snap := Snapshot{Origin: origin, States: make([]Envelope, 0, len(states))}
	for _, cs := range states {
		snap.States = append(snap.States, newEnvelope(cs, origin, true))
	}
	return json.Marshal(snap)
}

// DecodeSnapshot parses a snapshot reply.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode state snapshot: %w", err)
	}
	return snap, nil
}

// DecodeReport parses an inbound agent report, a flat JSON object of string
// fields.
func DecodeReport(data []byte) (map[string]string, error) {
	fields := make(map[string]string)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode state report: %w", err)
	}
	return fields, nil
}

// errSelfReportedStopped marks a report that is dropped by the filtering
// rule rather than for being malformed.
type errSelfReportedStopped struct {
	state string
}

func (e *errSelfReportedStopped) Error() string {
	return fmt.Sprintf("self-reported state %s is not applied", e.state)
}

// parseReport converts report fields into a CurrentState. Reports without a
// TYPE are from JVM agents, the only kind that runs one.
func parseReport(fields map[string]string, now time.Time) (api.CurrentState, error) {
	kind := api.KindJVM
	if raw := strings.TrimSpace(fields[FieldType]); raw != "" {
		parsed, err := api.ParseResourceKind(raw)
		if err != nil {
			return api.CurrentState{}, err
		}
		kind = parsed
	}
	profile := kind.Profile()

	rawState := fields[FieldState]
	if profile.IsSelfReportedStopped(rawState) {
		return api.CurrentState{}, &errSelfReportedStopped{state: rawState}
	}

	id := strings.TrimSpace(fields[FieldID])
	if id == "" {
		return api.CurrentState{}, fmt.Errorf("report has no %s", FieldID)
	}

	state, ok := profile.ParseState(rawState)
	if !ok {
		return api.CurrentState{}, fmt.Errorf("unknown %s state %q", kind, rawState)
	}

	observedAt := now
	if raw := strings.TrimSpace(fields[FieldAsOf]); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			observedAt = t
		}
	}

	actor := api.Actor("agent")
	if instance := strings.TrimSpace(fields[FieldInstanceID]); instance != "" {
		actor = api.Actor("agent:" + instance)
	}

	return api.CurrentState{
		Ref:        api.ResourceRef{Kind: kind, ID: id},
		State:      state,
		Actor:      actor,
		ObservedAt: observedAt,
		Message:    fields[FieldMessage],
	}, nil
}
