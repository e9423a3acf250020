// Package lock provides one exclusive lock per managed resource.
package lock

import (
	"context"
	"sync"

	"steward/internal/api"
	"steward/pkg/logging"
)

// resourceLock is a context-aware mutex: a buffered channel of capacity one
// holds the token while the lock is taken.
type resourceLock struct {
	token chan struct{}
}

// Registry lazily creates one exclusive lock per resource on first use and
// reuses it thereafter. Locks are never removed.
type Registry struct {
	mu    sync.RWMutex
	locks map[api.ResourceRef]*resourceLock
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{locks: make(map[api.ResourceRef]*resourceLock)}
}

func (r *Registry) lockFor(ref api.ResourceRef) *resourceLock {
	r.mu.RLock()
	l, ok := r.locks[ref]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok = r.locks[ref]; ok {
		return l
	}
	l = &resourceLock{token: make(chan struct{}, 1)}
	r.locks[ref] = l
	return l
}

// Acquire blocks until the lock for ref is held or ctx is done.
func (r *Registry) Acquire(ctx context.Context, ref api.ResourceRef) (*Handle, error) {
	l := r.lockFor(ref)

	select {
	case l.token <- struct{}{}:
		return &Handle{ref: ref, lock: l}, nil
	default:
	}

	logging.Debug("Lock", "Waiting for lock on %s", ref)
	select {
	case l.token <- struct{}{}:
		return &Handle{ref: ref, lock: l}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of distinct resources a lock was created for.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.locks)
}

// Handle is a held resource lock.
type Handle struct {
	ref  api.ResourceRef
	lock *resourceLock
	once sync.Once
}

// Ref returns the locked resource.
func (h *Handle) Ref() api.ResourceRef { return h.ref }

// Release unlocks the resource. Calling it more than once is a no-op.
func (h *Handle) Release() {
	h.once.Do(func() {
		<-h.lock.token
	})
}
