package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/api"
)

var jvm7 = api.ResourceRef{Kind: api.KindJVM, ID: "7"}

func TestStore_GetUnknown(t *testing.T) {
	s := NewStore()
	_, ok := s.Get(jvm7)
	assert.False(t, ok)
	assert.Equal(t, api.StateNew, s.StateOf(jvm7))
}

func TestStore_UpdateOverwritesInArrivalOrder(t *testing.T) {
	s := NewStore()
	later := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	s.Update(api.CurrentState{Ref: jvm7, State: api.StateStarted, ObservedAt: later})
	s.Update(api.CurrentState{Ref: jvm7, State: api.StateStopped, ObservedAt: earlier})

	cs, ok := s.Get(jvm7)
	require.True(t, ok)
	assert.Equal(t, api.StateStopped, cs.State)
	assert.Equal(t, earlier, cs.ObservedAt)
}

func TestStore_UpdateStampsObservedAt(t *testing.T) {
	s := NewStore()
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	stored := s.Update(api.CurrentState{Ref: jvm7, State: api.StateFailed})
	assert.Equal(t, fixed, stored.ObservedAt)
}

func TestStore_Seed(t *testing.T) {
	s := NewStore()
	assert.True(t, s.Seed(jvm7))
	assert.Equal(t, api.StateNew, s.StateOf(jvm7))

	s.Update(api.CurrentState{Ref: jvm7, State: api.StateStopped})
	assert.False(t, s.Seed(jvm7))
	assert.Equal(t, api.StateStopped, s.StateOf(jvm7))
}

func TestStore_List(t *testing.T) {
	s := NewStore()
	s.Update(api.CurrentState{Ref: api.ResourceRef{Kind: api.KindWebServer, ID: "1"}, State: api.StateReachable})
	s.Update(api.CurrentState{Ref: jvm7, State: api.StateStarted})
	s.Update(api.CurrentState{Ref: api.ResourceRef{Kind: api.KindJVM, ID: "1"}, State: api.StateStopped})

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, "jvm/1", list[0].Ref.String())
	assert.Equal(t, "jvm/7", list[1].Ref.String())
	assert.Equal(t, "webserver/1", list[2].Ref.String())
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := api.ResourceRef{Kind: api.KindJVM, ID: fmt.Sprintf("%d", i%5)}
			state := api.StateStarted
			if i%2 == 0 {
				state = api.StateStopped
			}
			s.Update(api.CurrentState{Ref: ref, State: state})
			s.Get(ref)
			s.List()
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.List(), 5)
	for _, cs := range s.List() {
		assert.Contains(t, []api.LifecycleState{api.StateStarted, api.StateStopped}, cs.State)
	}
}
