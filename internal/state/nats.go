package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"steward/pkg/logging"
)

// OriginHeader carries the sender identity on inbound reports.
const OriginHeader = "Steward-Origin"

// NATSConfig configures a NATSChannel.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	// Name identifies this process to the NATS server.
	Name string
}

// NATSChannel implements Channel and SnapshotChannel over NATS. State
// changes are exchanged on <prefix>.state, agent reports are read from
// <prefix>.report and snapshot requests are answered on <prefix>.snapshot.
type NATSChannel struct {
	cfg NATSConfig

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewNATSChannel creates an unconnected channel.
func NewNATSChannel(cfg NATSConfig) *NATSChannel {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "steward"
	}
	cfg.SubjectPrefix = strings.TrimSuffix(cfg.SubjectPrefix, ".")
	return &NATSChannel{cfg: cfg}
}

// StateSubject is the subject outbound state changes are published on.
func (c *NATSChannel) StateSubject() string { return c.cfg.SubjectPrefix + ".state" }

// ReportSubject is the subject agent reports are received from.
func (c *NATSChannel) ReportSubject() string { return c.cfg.SubjectPrefix + ".report" }

// SnapshotSubject is the request subject for state table snapshots.
func (c *NATSChannel) SnapshotSubject() string { return c.cfg.SubjectPrefix + ".snapshot" }

// Connect dials the NATS server. Membership changes (discovered servers,
// disconnects, reconnects) are logged and otherwise ignored.
func (c *NATSChannel) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(c.cfg.Name),
		nats.NoEcho(),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DiscoveredServersHandler(func(nc *nats.Conn) {
			logging.Debug("StateBus", "Cluster view changed, known servers: %v", nc.DiscoveredServers())
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn("StateBus", "Disconnected from NATS: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("StateBus", "Reconnected to NATS at %s", nc.ConnectedUrl())
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	conn, err := nats.Connect(c.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	logging.Info("StateBus", "Connected to NATS at %s (subjects %s, %s)", c.cfg.URL, c.StateSubject(), c.ReportSubject())
	return nil
}

// Broadcast implements Channel.
func (c *NATSChannel) Broadcast(_ context.Context, payload []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("NATS connection not established; call Connect first")
	}
	if err := conn.Publish(c.StateSubject(), payload); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", c.StateSubject(), err)
	}
	return nil
}

// Listen implements Channel.
func (c *NATSChannel) Listen(handler ReportHandler) error {
	return c.subscribe(c.ReportSubject(), func(msg *nats.Msg) {
		handler(source(msg), msg.Data)
	})
}

// ListenPeers implements Channel. The connection does not echo, so a
// process never receives its own broadcasts.
func (c *NATSChannel) ListenPeers(handler ReportHandler) error {
	return c.subscribe(c.StateSubject(), func(msg *nats.Msg) {
		handler(source(msg), msg.Data)
	})
}

// ServeSnapshots implements SnapshotChannel.
func (c *NATSChannel) ServeSnapshots(provide func() ([]byte, error)) error {
	return c.subscribe(c.SnapshotSubject(), func(msg *nats.Msg) {
		data, err := provide()
		if err != nil {
			logging.Error("StateBus", err, "Failed to build state snapshot")
			return
		}
		if err := msg.Respond(data); err != nil {
			logging.Warn("StateBus", "Failed to answer snapshot request: %v", err)
		}
	})
}

// RequestSnapshot implements SnapshotChannel.
func (c *NATSChannel) RequestSnapshot(ctx context.Context) ([]byte, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return nil, fmt.Errorf("NATS connection not established; call Connect first")
	}
	msg, err := conn.RequestWithContext(ctx, c.SnapshotSubject(), nil)
	switch {
	case errors.Is(err, nats.ErrNoResponders), errors.Is(err, nats.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, ErrNoSnapshot
	case err != nil:
		return nil, fmt.Errorf("failed to request %q: %w", c.SnapshotSubject(), err)
	}
	return msg.Data, nil
}

func (c *NATSChannel) subscribe(subject string, cb nats.MsgHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("NATS connection not established; call Connect first")
	}
	sub, err := c.conn.Subscribe(subject, cb)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %q: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	return nil
}

// source names the sender of msg, preferring the origin header.
func source(msg *nats.Msg) string {
	if msg.Header != nil {
		if origin := msg.Header.Get(OriginHeader); origin != "" {
			return origin
		}
	}
	return msg.Subject
}

// Close unsubscribes and closes the connection.
func (c *NATSChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			logging.Warn("StateBus", "Failed to unsubscribe from %s: %v", sub.Subject, err)
		}
	}
	c.subs = nil

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}
