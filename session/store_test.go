package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/recall/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore builds a store with the sweeper disabled and a controllable clock.
func newTestStore(t *testing.T, opts ...Option) (*Store, *time.Time) {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := []Option{
		WithSweepInterval(0),
		WithClock(func() time.Time { return now }),
	}
	store, err := NewStore(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, &now
}

func msg(user, contents string) core.ChatMessage {
	return core.ChatMessage{
		Id:       core.IDFromContent(user + contents),
		Role:     core.RoleUser,
		Contents: contents,
		UserID:   user,
	}
}

func TestAppend_TrimsToCapacity(t *testing.T) {
	store, _ := newTestStore(t, WithCapacity(3))

	for i := 0; i < 10; i++ {
		store.Append("alice", msg("alice", fmt.Sprintf("message %d", i)))
	}

	recent := store.Recent("alice", 100)
	require.Len(t, recent, 3)
	assert.Equal(t, "message 7", recent[0].Contents)
	assert.Equal(t, "message 9", recent[2].Contents)
}

func TestRecent_OrderAndLimit(t *testing.T) {
	store, _ := newTestStore(t)

	store.Append("alice", msg("alice", "first"))
	store.Append("alice", msg("alice", "second"))
	store.Append("alice", msg("alice", "third"))

	t.Run("oldest to newest", func(t *testing.T) {
		recent := store.Recent("alice", 10)
		require.Len(t, recent, 3)
		assert.Equal(t, "first", recent[0].Contents)
		assert.Equal(t, "third", recent[2].Contents)
	})

	t.Run("limit keeps newest", func(t *testing.T) {
		recent := store.Recent("alice", 2)
		require.Len(t, recent, 2)
		assert.Equal(t, "second", recent[0].Contents)
	})

	t.Run("unknown user", func(t *testing.T) {
		assert.Nil(t, store.Recent("nobody", 10))
	})
}

func TestReset_NewIDAndEmptyHistory(t *testing.T) {
	store, _ := newTestStore(t)

	store.Append("alice", msg("alice", "hello"))
	before := store.Info("alice")
	require.NotNil(t, before)

	id := store.Reset("alice")
	assert.NotEqual(t, before.SessionID, id)

	after := store.Info("alice")
	require.NotNil(t, after)
	assert.Equal(t, id, after.SessionID)
	assert.Equal(t, 0, after.MessageCount)
	assert.Empty(t, store.Recent("alice", 10))
}

func TestReset_RepeatedResetsAlwaysDiffer(t *testing.T) {
	store, _ := newTestStore(t)

	seen := map[string]bool{}
	prev := ""
	for i := 0; i < 20; i++ {
		id := store.Reset("alice")
		assert.NotEqual(t, prev, id)
		assert.False(t, seen[id])
		seen[id] = true
		prev = id
	}
}

func TestSweep_TTLBoundary(t *testing.T) {
	store, now := newTestStore(t, WithTTL(48*time.Hour))

	store.Append("stale", msg("stale", "old message"))
	*now = now.Add(2 * time.Hour)
	store.Append("fresh", msg("fresh", "newer message"))

	// stale is now 49h idle, fresh 47h idle
	sweepAt := now.Add(47 * time.Hour)
	evicted := store.Sweep(sweepAt)

	assert.Equal(t, 1, evicted)
	assert.Nil(t, store.Info("stale"))
	assert.NotNil(t, store.Info("fresh"))
	assert.Equal(t, 1, store.Len())
}

func TestSweep_ExactTTLIsKept(t *testing.T) {
	store, now := newTestStore(t, WithTTL(48*time.Hour))

	store.Append("alice", msg("alice", "hello"))
	evicted := store.Sweep(now.Add(48 * time.Hour))

	assert.Equal(t, 0, evicted)
	assert.NotNil(t, store.Info("alice"))
}

func TestSweep_EvictedEntryNeverAbsorbsWrites(t *testing.T) {
	store, now := newTestStore(t, WithTTL(48*time.Hour))

	store.Append("alice", msg("alice", "old message"))
	stale := store.entry("alice")

	require.Equal(t, 1, store.Sweep(now.Add(49*time.Hour)))

	// The sweeper marks the entry under its lock, so a writer that looked
	// the entry up before the sweep re-fetches instead of appending into
	// the deleted one.
	stale.mu.Lock()
	assert.True(t, stale.evicted)
	stale.mu.Unlock()

	store.Append("alice", msg("alice", "new message"))

	info := store.Info("alice")
	require.NotNil(t, info)
	assert.Equal(t, 1, info.MessageCount)
	recent := store.Recent("alice", 10)
	require.Len(t, recent, 1)
	assert.Equal(t, "new message", recent[0].Contents)
}

func TestInfo_NilForUnknownUser(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Nil(t, store.Info("nobody"))
}

func TestGetOrCreate_ReturnsSnapshot(t *testing.T) {
	store, _ := newTestStore(t)

	store.Append("alice", msg("alice", "hello"))
	snap := store.GetOrCreate("alice")
	require.Len(t, snap.Messages, 1)

	// Mutating the snapshot must not affect the store.
	snap.Messages[0].Contents = "tampered"
	assert.Equal(t, "hello", store.Recent("alice", 1)[0].Contents)
}

func TestConcurrentAppends_BoundHolds(t *testing.T) {
	store, _ := newTestStore(t, WithCapacity(15))

	users := []string{"a", "b", "c", "d"}
	var wg sync.WaitGroup
	for _, user := range users {
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(user string, i int) {
				defer wg.Done()
				store.Append(user, msg(user, fmt.Sprintf("m%d", i)))
			}(user, i)
		}
	}
	wg.Wait()

	for _, user := range users {
		info := store.Info(user)
		require.NotNil(t, info)
		assert.Equal(t, 15, info.MessageCount)
	}
}
