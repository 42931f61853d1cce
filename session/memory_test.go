package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreContract(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) storeHarness {
		clock := newFakeClock()
		return storeHarness{
			store:   NewMemoryStore(MemoryOptions{Now: clock.Now}),
			advance: clock.Advance,
		}
	})
}

func TestMemoryStoreLockExpiryIsExact(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(MemoryOptions{Now: clock.Now})
	ctx := context.Background()

	require.NoError(t, store.Lock(ctx, "alice", 5*time.Minute))
	until, ok, err := store.GetLockExpiry(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(5*time.Minute), until)
}

func TestMemoryStoreIndexCleanup(t *testing.T) {
	store := NewMemoryStore(MemoryOptions{})
	ctx := context.Background()

	require.NoError(t, store.SaveRefresh(ctx, "tok", "alice", time.Hour))
	require.NoError(t, store.DeleteRefresh(ctx, "tok"))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.refresh)
	assert.Empty(t, store.byIdentity)
}
