package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"steward/internal/api"
	"steward/internal/history"
	"steward/internal/metrics"
	"steward/pkg/logging"
)

const subscriberBuffer = 100

// Bus publishes state changes, applies inbound agent reports and keeps the
// store in step with other steward processes on the same channel.
type Bus struct {
	store   *Store
	channel Channel
	metrics *metrics.Metrics
	origin  string
	events  history.Recorder
	now     func() time.Time

	mu          sync.RWMutex
	subscribers map[int]chan api.CurrentState
	nextID      int
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithMetrics records inbound report results.
func WithMetrics(m *metrics.Metrics) BusOption {
	return func(b *Bus) { b.metrics = m }
}

// WithOrigin sets the sender identity stamped on outbound envelopes.
func WithOrigin(origin string) BusOption {
	return func(b *Bus) { b.origin = origin }
}

// WithEvents hands history notifications broadcast by peers to rec.
func WithEvents(rec history.Recorder) BusOption {
	return func(b *Bus) { b.events = rec }
}

// NewBus creates a bus over store. A nil channel means state changes are
// only fanned out locally.
func NewBus(store *Store, channel Channel, opts ...BusOption) *Bus {
	b := &Bus{
		store:       store,
		channel:     channel,
		now:         time.Now,
		subscribers: make(map[int]chan api.CurrentState),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start registers the bus as the channel's report and peer handler.
func (b *Bus) Start() error {
	if b.channel == nil {
		return nil
	}
	if err := b.channel.Listen(b.handlePayload); err != nil {
		return err
	}
	return b.channel.ListenPeers(b.handleEnvelope)
}

// Origin is the sender identity stamped on outbound envelopes.
func (b *Bus) Origin() string { return b.origin }

// Publish fans cs out to local subscribers and broadcasts it to peers. It
// never fails: broadcast errors are logged. Publish does not write the
// store, so peers do not store cs either.
func (b *Bus) Publish(ctx context.Context, cs api.CurrentState) {
	b.publish(ctx, cs, false)
}

// Commit writes cs to the store, fans the stored value out and broadcasts
// it for peers to store.
func (b *Bus) Commit(ctx context.Context, cs api.CurrentState) api.CurrentState {
	if cs.ObservedAt.IsZero() {
		cs.ObservedAt = b.now()
	}
	stored := b.store.Update(cs)
	b.publish(ctx, stored, true)
	return stored
}

func (b *Bus) publish(ctx context.Context, cs api.CurrentState, stored bool) {
	if cs.ObservedAt.IsZero() {
		cs.ObservedAt = b.now()
	}
	b.fanOut(cs)

	if b.channel == nil {
		return
	}
	payload, err := json.Marshal(newEnvelope(cs, b.origin, stored))
	if err != nil {
		logging.Error("StateBus", err, "Failed to encode state for %s", cs.Ref)
		return
	}
	if err := b.channel.Broadcast(ctx, payload); err != nil {
		logging.Warn("StateBus", "Failed to broadcast state %s for %s: %v", cs.State, cs.Ref, err)
	}
}

// Record implements history.Recorder by broadcasting event to peers. It is
// how discrete notifications reach the serve daemon.
func (b *Bus) Record(ctx context.Context, event history.Event) error {
	if b.channel == nil {
		return nil
	}
	payload, err := EncodeEvent(event, b.origin)
	if err != nil {
		return err
	}
	return b.channel.Broadcast(ctx, payload)
}

// ServeSnapshots answers peer snapshot requests with the store's contents.
// It is a no-op on channels that cannot carry requests.
func (b *Bus) ServeSnapshots() error {
	sc, ok := b.channel.(SnapshotChannel)
	if !ok {
		return nil
	}
	return sc.ServeSnapshots(func() ([]byte, error) {
		return EncodeSnapshot(b.store.List(), b.origin)
	})
}

// Hydrate loads a running peer's state table into the store and returns
// the number of states applied. No answering peer is not an error: the
// store then keeps what it has.
func (b *Bus) Hydrate(ctx context.Context) (int, error) {
	sc, ok := b.channel.(SnapshotChannel)
	if !ok {
		return 0, nil
	}
	data, err := sc.RequestSnapshot(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		logging.Debug("StateBus", "No peer answered the snapshot request")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, env := range snap.States {
		cs, err := env.CurrentState()
		if err != nil {
			logging.Warn("StateBus", "Skipping snapshot entry from %s: %v", snap.Origin, err)
			continue
		}
		b.store.Update(cs)
		applied++
	}
	logging.Debug("StateBus", "Loaded %d states from %s", applied, snap.Origin)
	return applied, nil
}

// Subscribe returns a buffered channel of state changes and a function that
// unsubscribes and closes it. Slow subscribers miss events.
func (b *Bus) Subscribe() (<-chan api.CurrentState, func()) {
	ch := make(chan api.CurrentState, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (b *Bus) fanOut(cs api.CurrentState) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- cs:
		default:
			logging.Debug("StateBus", "Subscriber blocked, skipping state %s for %s", cs.State, cs.Ref)
		}
	}
}

// OnReport applies one inbound agent report. It reports whether the store
// was updated. Applied reports are fanned out locally but not re-broadcast.
func (b *Bus) OnReport(src string, fields map[string]string) bool {
	cs, err := parseReport(fields, b.now())
	if err != nil {
		var stopped *errSelfReportedStopped
		if errors.As(err, &stopped) {
			logging.Debug("StateBus", "Dropping self-reported %s for %s from %s", stopped.state, fields[FieldID], src)
			b.metrics.RecordStateReport(metrics.ReportDropped)
			return false
		}
		logging.Warn("StateBus", "Dropping unparseable state report from %s: %v", src, err)
		b.metrics.RecordStateReport(metrics.ReportInvalid)
		return false
	}

	stored := b.store.Update(cs)
	b.metrics.RecordStateReport(metrics.ReportApplied)
	logging.Debug("StateBus", "Applied reported state %s for %s from %s", stored.State, stored.Ref, src)
	b.fanOut(stored)
	return true
}

func (b *Bus) handlePayload(src string, payload []byte) {
	fields, err := DecodeReport(payload)
	if err != nil {
		logging.Warn("StateBus", "Dropping malformed payload from %s: %v", src, err)
		b.metrics.RecordStateReport(metrics.ReportInvalid)
		return
	}
	b.OnReport(src, fields)
}

// handleEnvelope applies a broadcast from another steward process. The
// bus's own broadcasts are ignored. Stored states overwrite the store in
// arrival order, transition states are only fanned out.
func (b *Bus) handleEnvelope(src string, payload []byte) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		logging.Warn("StateBus", "Dropping malformed envelope from %s: %v", src, err)
		b.metrics.RecordStateReport(metrics.ReportInvalid)
		return
	}
	if env.Origin == b.origin {
		return
	}

	if env.Event != nil {
		if b.events == nil {
			return
		}
		if err := b.events.Record(context.Background(), *env.Event); err != nil {
			logging.Warn("StateBus", "Failed to record notification from %s: %v", env.Origin, err)
		}
		return
	}

	cs, err := env.CurrentState()
	if err != nil {
		logging.Warn("StateBus", "Dropping envelope %s from %s: %v", env.ID, env.Origin, err)
		b.metrics.RecordStateReport(metrics.ReportInvalid)
		return
	}
	if env.Stored {
		cs = b.store.Update(cs)
	}
	b.metrics.RecordStateReport(metrics.ReportPeer)
	logging.Debug("StateBus", "Peer %s reported %s for %s", env.Origin, cs.State, cs.Ref)
	b.fanOut(cs)
}

// Close unsubscribes every local subscriber.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
