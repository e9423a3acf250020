package state

import (
	"context"
	"errors"
	"sync"
)

// LoopbackChannel is an in-process Channel. Broadcasts are kept for
// inspection and handed to peer handlers, Deliver injects inbound reports.
// Buses sharing one loopback behave like separate processes on one NATS
// subject. It backs standalone mode and tests.
type LoopbackChannel struct {
	mu         sync.Mutex
	handlers   []ReportHandler
	peers      []ReportHandler
	broadcasts [][]byte
	snapshot   func() ([]byte, error)
	closed     bool
	// FailBroadcast, when set, is returned by every Broadcast.
	FailBroadcast error
}

// NewLoopbackChannel creates an empty loopback channel.
func NewLoopbackChannel() *LoopbackChannel {
	return &LoopbackChannel{}
}

// Broadcast implements Channel. Peer handlers run synchronously.
func (c *LoopbackChannel) Broadcast(_ context.Context, payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("loopback channel closed")
	}
	if c.FailBroadcast != nil {
		c.mu.Unlock()
		return c.FailBroadcast
	}
	payload = append([]byte(nil), payload...)
	c.broadcasts = append(c.broadcasts, payload)
	peers := append([]ReportHandler(nil), c.peers...)
	c.mu.Unlock()

	for _, h := range peers {
		h("loopback", payload)
	}
	return nil
}

// Listen implements Channel.
func (c *LoopbackChannel) Listen(handler ReportHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
	return nil
}

// ListenPeers implements Channel.
func (c *LoopbackChannel) ListenPeers(handler ReportHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers = append(c.peers, handler)
	return nil
}

// ServeSnapshots implements SnapshotChannel. The last provider wins.
func (c *LoopbackChannel) ServeSnapshots(provide func() ([]byte, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = provide
	return nil
}

// RequestSnapshot implements SnapshotChannel.
func (c *LoopbackChannel) RequestSnapshot(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	provide := c.snapshot
	closed := c.closed
	c.mu.Unlock()

	if closed || provide == nil {
		return nil, ErrNoSnapshot
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrNoSnapshot
	}
	return provide()
}

// Deliver hands payload to every registered handler synchronously.
func (c *LoopbackChannel) Deliver(src string, payload []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	handlers := make([]ReportHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h(src, payload)
	}
}

// Broadcasts returns a copy of every broadcast payload.
func (c *LoopbackChannel) Broadcasts() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.broadcasts))
	copy(out, c.broadcasts)
	return out
}

// Close implements Channel.
func (c *LoopbackChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.handlers = nil
	c.peers = nil
	c.snapshot = nil
	return nil
}
