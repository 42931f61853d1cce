package session

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// storeHarness exposes a store plus a way to move its notion of time.
type storeHarness struct {
	store   Store
	advance func(time.Duration)
}

// runStoreSuite exercises the Store contract shared by every backend.
func runStoreSuite(t *testing.T, newHarness func(t *testing.T) storeHarness) {
	ctx := context.Background()

	t.Run("refresh save and liveness", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.store.SaveRefresh(ctx, "tok-1", "alice", time.Hour))

		live, err := h.store.IsRefreshLive(ctx, "tok-1", "alice")
		require.NoError(t, err)
		assert.True(t, live)

		live, err = h.store.IsRefreshLive(ctx, "tok-1", "bob")
		require.NoError(t, err)
		assert.False(t, live, "token must be bound to its identity")

		live, err = h.store.IsRefreshLive(ctx, "unknown", "alice")
		require.NoError(t, err)
		assert.False(t, live)
	})

	t.Run("refresh expires at ttl", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.store.SaveRefresh(ctx, "tok-ttl", "alice", time.Minute))
		h.advance(2 * time.Minute)

		live, err := h.store.IsRefreshLive(ctx, "tok-ttl", "alice")
		require.NoError(t, err)
		assert.False(t, live)
	})

	t.Run("delete refresh is idempotent", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.store.SaveRefresh(ctx, "tok-del", "alice", time.Hour))
		require.NoError(t, h.store.DeleteRefresh(ctx, "tok-del"))
		require.NoError(t, h.store.DeleteRefresh(ctx, "tok-del"))
		require.NoError(t, h.store.DeleteRefresh(ctx, "never-saved"))

		live, err := h.store.IsRefreshLive(ctx, "tok-del", "alice")
		require.NoError(t, err)
		assert.False(t, live)
	})

	t.Run("delete all for identity", func(t *testing.T) {
		h := newHarness(t)
		for _, tok := range []string{"a1", "a2", "a3"} {
			require.NoError(t, h.store.SaveRefresh(ctx, tok, "alice", time.Hour))
		}
		require.NoError(t, h.store.SaveRefresh(ctx, "b1", "bob", time.Hour))

		require.NoError(t, h.store.DeleteAllForIdentity(ctx, "alice"))
		require.NoError(t, h.store.DeleteAllForIdentity(ctx, "alice"))

		for _, tok := range []string{"a1", "a2", "a3"} {
			live, err := h.store.IsRefreshLive(ctx, tok, "alice")
			require.NoError(t, err)
			assert.False(t, live, tok)
		}
		live, err := h.store.IsRefreshLive(ctx, "b1", "bob")
		require.NoError(t, err)
		assert.True(t, live, "other identities are untouched")
	})

	t.Run("consume refresh has one winner", func(t *testing.T) {
		h := newHarness(t)
		consumer, ok := h.store.(RefreshConsumer)
		require.True(t, ok)
		require.NoError(t, h.store.SaveRefresh(ctx, "tok-race", "alice", time.Hour))

		ok, err := consumer.ConsumeRefresh(ctx, "tok-race", "bob")
		require.NoError(t, err)
		assert.False(t, ok, "wrong identity must not consume")

		const workers = 16
		var wins sync.WaitGroup
		results := make(chan bool, workers)
		wins.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wins.Done()
				won, err := consumer.ConsumeRefresh(ctx, "tok-race", "alice")
				assert.NoError(t, err)
				results <- won
			}()
		}
		wins.Wait()
		close(results)

		winners := 0
		for won := range results {
			if won {
				winners++
			}
		}
		assert.Equal(t, 1, winners)
	})

	t.Run("failed attempts increment and reset", func(t *testing.T) {
		h := newHarness(t)
		n, err := h.store.GetFailedAttempts(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		for want := 1; want <= 3; want++ {
			got, err := h.store.IncrementFailedAttempts(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		n, err = h.store.GetFailedAttempts(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		require.NoError(t, h.store.ResetFailedAttempts(ctx, "alice"))
		require.NoError(t, h.store.ResetFailedAttempts(ctx, "alice"))
		n, err = h.store.GetFailedAttempts(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		got, err := h.store.IncrementFailedAttempts(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, got)
	})

	t.Run("reset starts a fresh attempt window", func(t *testing.T) {
		h := newHarness(t)
		for i := 0; i < 2; i++ {
			_, err := h.store.IncrementFailedAttempts(ctx, "erin")
			require.NoError(t, err)
		}
		h.advance(DefaultAttemptTTL - time.Minute)
		require.NoError(t, h.store.ResetFailedAttempts(ctx, "erin"))

		got, err := h.store.IncrementFailedAttempts(ctx, "erin")
		require.NoError(t, err)
		assert.Equal(t, 1, got)

		// Past the window opened by the first failure, inside the new one.
		h.advance(2 * time.Minute)
		n, err := h.store.GetFailedAttempts(ctx, "erin")
		require.NoError(t, err)
		assert.Equal(t, 1, n, "the failure after a reset must get a full AttemptTTL")
	})

	t.Run("failed attempts expire", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.store.IncrementFailedAttempts(ctx, "carol")
		require.NoError(t, err)
		h.advance(DefaultAttemptTTL + time.Minute)

		n, err := h.store.GetFailedAttempts(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("concurrent increments are distinct", func(t *testing.T) {
		h := newHarness(t)
		const workers = 50

		var wg sync.WaitGroup
		counts := make(chan int, workers)
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				n, err := h.store.IncrementFailedAttempts(ctx, "dave")
				assert.NoError(t, err)
				counts <- n
			}()
		}
		wg.Wait()
		close(counts)

		got := make([]int, 0, workers)
		for n := range counts {
			got = append(got, n)
		}
		sort.Ints(got)
		for i, n := range got {
			require.Equal(t, i+1, n, "lost or duplicated increment")
		}
	})

	t.Run("lock and expiry", func(t *testing.T) {
		h := newHarness(t)
		_, ok, err := h.store.GetLockExpiry(ctx, "erin")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, h.store.Lock(ctx, "erin", 5*time.Minute))
		until, ok, err := h.store.GetLockExpiry(ctx, "erin")
		require.NoError(t, err)
		require.True(t, ok)
		assert.False(t, until.IsZero())

		h.advance(6 * time.Minute)
		_, ok, err = h.store.GetLockExpiry(ctx, "erin")
		require.NoError(t, err)
		assert.False(t, ok, "lock must lapse after its duration")
	})

	t.Run("zero lock is a no-op", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.store.Lock(ctx, "frank", 0))
		_, ok, err := h.store.GetLockExpiry(ctx, "frank")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
