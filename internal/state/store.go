package state

import (
	"sort"
	"sync"
	"time"

	"steward/internal/api"
)

type record struct {
	mu    sync.Mutex
	state api.CurrentState
}

// Store is a thread-safe map from resource to its last known state.
// Records are created lazily and never removed.
type Store struct {
	mu      sync.RWMutex
	records map[api.ResourceRef]*record
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records: make(map[api.ResourceRef]*record),
		now:     time.Now,
	}
}

// lookup returns the record for ref, inserting an empty one when create is
// set. Insertion is double-checked so the write lock is only taken for new
// keys.
func (s *Store) lookup(ref api.ResourceRef, create bool) (*record, bool) {
	s.mu.RLock()
	rec, ok := s.records[ref]
	s.mu.RUnlock()
	if ok || !create {
		return rec, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok = s.records[ref]; ok {
		return rec, false
	}
	rec = &record{}
	s.records[ref] = rec
	return rec, true
}

// Get returns the current state of ref.
func (s *Store) Get(ref api.ResourceRef) (api.CurrentState, bool) {
	rec, _ := s.lookup(ref, false)
	if rec == nil {
		return api.CurrentState{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state.State == "" {
		return api.CurrentState{}, false
	}
	return rec.state, true
}

// StateOf returns the lifecycle state of ref, or the kind's new state when
// nothing is known yet.
func (s *Store) StateOf(ref api.ResourceRef) api.LifecycleState {
	if cs, ok := s.Get(ref); ok {
		return cs.State
	}
	return ref.Kind.Profile().New
}

// Update overwrites the state of cs.Ref unconditionally and returns the
// stored value. A zero ObservedAt is set to now.
func (s *Store) Update(cs api.CurrentState) api.CurrentState {
	if cs.ObservedAt.IsZero() {
		cs.ObservedAt = s.now()
	}
	rec, _ := s.lookup(cs.Ref, true)
	rec.mu.Lock()
	rec.state = cs
	rec.mu.Unlock()
	return cs
}

// Seed records ref as new unless a state is already known. It reports
// whether the seed was applied.
func (s *Store) Seed(ref api.ResourceRef) bool {
	rec, _ := s.lookup(ref, true)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state.State != "" {
		return false
	}
	rec.state = api.CurrentState{
		Ref:        ref,
		State:      ref.Kind.Profile().New,
		Actor:      api.SystemActor,
		ObservedAt: s.now(),
	}
	return true
}

// List returns every known state ordered by resource reference.
func (s *Store) List() []api.CurrentState {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]api.CurrentState, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.state.State != "" {
			out = append(out, rec.state)
		}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Ref.String() < out[j].Ref.String()
	})
	return out
}
