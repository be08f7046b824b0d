package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/parkline/relay/internal/testutil"
)

func newTestSession(id, location string) *Session {
	return New(id, testutil.NewFakeTransport(), location, time.Now())
}

func joined(id, location, nickname string) *Session {
	s := newTestSession(id, location)
	s.SetProfile(Profile{"nickname": nickname, "id": id})
	return s
}

func TestSession_ActiveOnlyAfterProfile(t *testing.T) {
	s := newTestSession("s1", "Park")
	assert.False(t, s.Active())
	assert.Nil(t, s.Profile())

	s.SetProfile(Profile{"nickname": "Al"})
	assert.True(t, s.Active())
	assert.Equal(t, "Al", s.Nickname())
}

func TestSession_ProfileStringFields(t *testing.T) {
	s := newTestSession("s1", "Park")
	assert.Empty(t, s.Nickname())
	assert.Empty(t, s.Username())

	s.SetProfile(Profile{"nickname": "Al", "username": "al42", "hat": 7})
	assert.Equal(t, "Al", s.Nickname())
	assert.Equal(t, "al42", s.Username())
}

func TestSession_Position(t *testing.T) {
	s := newTestSession("s1", "Park")
	x, y := s.Position()
	assert.Zero(t, x)
	assert.Zero(t, y)

	s.SetPosition(12.5, 99)
	x, y = s.Position()
	assert.Equal(t, 12.5, x)
	assert.Equal(t, 99.0, y)
}

func TestSession_Touch(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New("s1", testutil.NewFakeTransport(), "Park", base)
	assert.Equal(t, base, s.LastActivity())

	later := base.Add(45 * time.Second)
	s.Touch(later)
	assert.Equal(t, later, s.LastActivity())
}

func TestRegistry_InsertGetRemove(t *testing.T) {
	r := NewRegistry()
	s := newTestSession("s1", "Park")
	r.Insert(s)

	got, ok := r.Get("s1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Remove("s1"))
	_, ok = r.Get("s1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Insert(newTestSession("s1", "Park"))

	assert.True(t, r.Remove("s1"))
	assert.False(t, r.Remove("s1"))
	assert.False(t, r.Remove("never-existed"))
}

func TestRegistry_ActiveInLocation_ExcludesUnjoined(t *testing.T) {
	r := NewRegistry()
	r.Insert(joined("a", "Park", "Al"))
	r.Insert(newTestSession("b", "Park")) // connected, never joined

	active := r.ActiveInLocation("Park", "")
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)
}

func TestRegistry_ActiveInLocation_LocationIsolation(t *testing.T) {
	r := NewRegistry()
	r.Insert(joined("a", "Park", "Al"))
	r.Insert(joined("b", "Beach", "Bo"))

	park := r.ActiveInLocation("Park", "")
	require.Len(t, park, 1)
	assert.Equal(t, "a", park[0].ID)

	beach := r.ActiveInLocation("Beach", "")
	require.Len(t, beach, 1)
	assert.Equal(t, "b", beach[0].ID)

	assert.Empty(t, r.ActiveInLocation("Downtown", ""))
}

func TestRegistry_ActiveInLocation_ExcludeID(t *testing.T) {
	r := NewRegistry()
	r.Insert(joined("a", "Park", "Al"))
	r.Insert(joined("b", "Park", "Bo"))

	others := r.ActiveInLocation("Park", "a")
	require.Len(t, others, 1)
	assert.Equal(t, "b", others[0].ID)
}

func TestRegistry_AllIncludesUnjoined(t *testing.T) {
	r := NewRegistry()
	r.Insert(joined("a", "Park", "Al"))
	r.Insert(newTestSession("b", "Park"))

	assert.Len(t, r.All(), 2)
}

func TestRegistry_AllSnapshotStableUnderRemoval(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 10; i++ {
		r.Insert(newTestSession(fmt.Sprintf("s%d", i), "Park"))
	}

	snap := r.All()
	for _, s := range snap {
		r.Remove(s.ID)
	}
	// The snapshot itself is unaffected by the removals.
	assert.Len(t, snap, 10)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentInsertRemove(t *testing.T) {
	r := NewRegistry()
	const n = 100
	var wg sync.WaitGroup

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			r.Insert(joined(fmt.Sprintf("s%d", i), "Park", fmt.Sprintf("P%d", i)))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, r.Len())
	assert.Len(t, r.ActiveInLocation("Park", ""), n)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			r.Remove(fmt.Sprintf("s%d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.ActiveInLocation("Park", ""))
}

func TestPropertyLocationCountsConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry()
		locations := []string{"Park", "Beach", "Downtown"}
		numSessions := rapid.IntRange(1, 20).Draw(t, "num_sessions")

		activeCount := 0
		for i := 0; i < numSessions; i++ {
			id := fmt.Sprintf("s%d", i)
			loc := locations[rapid.IntRange(0, len(locations)-1).Draw(t, "loc_idx")]
			if rapid.Bool().Draw(t, "join") {
				r.Insert(joined(id, loc, id))
				activeCount++
			} else {
				r.Insert(newTestSession(id, loc))
			}
		}

		numRemoves := rapid.IntRange(0, numSessions/2).Draw(t, "num_removes")
		for i := 0; i < numRemoves; i++ {
			id := fmt.Sprintf("s%d", rapid.IntRange(0, numSessions-1).Draw(t, "remove_idx"))
			if sess, ok := r.Get(id); ok {
				if sess.Active() {
					activeCount--
				}
				r.Remove(id)
			}
		}

		totalActive := 0
		for _, loc := range locations {
			totalActive += len(r.ActiveInLocation(loc, ""))
		}
		if totalActive != activeCount {
			t.Fatalf("active sum across locations %d != expected %d", totalActive, activeCount)
		}
	})
}
