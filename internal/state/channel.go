package state

import (
	"context"
	"errors"
)

// ReportHandler receives one inbound payload. src identifies the sender
// when the channel knows it.
type ReportHandler func(src string, payload []byte)

// ErrNoSnapshot is returned by RequestSnapshot when no peer answers.
var ErrNoSnapshot = errors.New("no peer answered the snapshot request")

// Channel is the cluster multicast channel the Bus broadcasts on and
// receives agent reports from. Delivery is best-effort.
type Channel interface {
	// Broadcast sends payload to all peers.
	Broadcast(ctx context.Context, payload []byte) error
	// Listen registers the handler for inbound reports. Handlers may be
	// invoked from any goroutine.
	Listen(handler ReportHandler) error
	// ListenPeers registers the handler for envelopes broadcast by other
	// steward processes.
	ListenPeers(handler ReportHandler) error
	Close() error
}

// SnapshotChannel is implemented by channels that can ask a running peer
// for its state table.
type SnapshotChannel interface {
	// ServeSnapshots answers snapshot requests with the output of provide.
	ServeSnapshots(provide func() ([]byte, error)) error
	// RequestSnapshot asks a peer for its state table. It returns
	// ErrNoSnapshot when nobody answers before ctx is done.
	RequestSnapshot(ctx context.Context) ([]byte, error)
}
