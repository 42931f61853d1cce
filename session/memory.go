package session

import (
	"context"
	"sync"
	"time"
)

// MemoryOptions configures a MemoryStore.
type MemoryOptions struct {
	AttemptTTL time.Duration
	Now        func() time.Time
}

type memoryRefresh struct {
	identity  string
	expiresAt time.Time
}

type memoryCounter struct {
	count     int
	expiresAt time.Time
}

// MemoryStore keeps all state in process memory. Expired entries are
// dropped lazily on access.
type MemoryStore struct {
	mu         sync.Mutex
	now        func() time.Time
	attemptTTL time.Duration

	refresh    map[string]memoryRefresh
	byIdentity map[string]map[string]struct{}
	attempts   map[string]memoryCounter
	locks      map[string]time.Time
}

var (
	_ Store           = (*MemoryStore)(nil)
	_ RefreshConsumer = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	return &MemoryStore{
		now:        nowOrDefault(opts.Now),
		attemptTTL: attemptTTLOrDefault(opts.AttemptTTL),
		refresh:    make(map[string]memoryRefresh),
		byIdentity: make(map[string]map[string]struct{}),
		attempts:   make(map[string]memoryCounter),
		locks:      make(map[string]time.Time),
	}
}

func (s *MemoryStore) SaveRefresh(_ context.Context, token, identity string, ttl time.Duration) error {
	key := TokenKey(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh[key] = memoryRefresh{identity: identity, expiresAt: s.now().Add(ttl)}
	idx, ok := s.byIdentity[identity]
	if !ok {
		idx = make(map[string]struct{})
		s.byIdentity[identity] = idx
	}
	idx[key] = struct{}{}
	return nil
}

func (s *MemoryStore) IsRefreshLive(_ context.Context, token, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.liveRefreshLocked(TokenKey(token))
	return ok && rec.identity == identity, nil
}

func (s *MemoryStore) ConsumeRefresh(_ context.Context, token, identity string) (bool, error) {
	key := TokenKey(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.liveRefreshLocked(key)
	if !ok || rec.identity != identity {
		return false, nil
	}
	s.deleteRefreshLocked(key, rec.identity)
	return true, nil
}

func (s *MemoryStore) DeleteRefresh(_ context.Context, token string) error {
	key := TokenKey(token)

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.refresh[key]; ok {
		s.deleteRefreshLocked(key, rec.identity)
	}
	return nil
}

func (s *MemoryStore) DeleteAllForIdentity(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.byIdentity[identity] {
		delete(s.refresh, key)
	}
	delete(s.byIdentity, identity)
	return nil
}

func (s *MemoryStore) GetFailedAttempts(_ context.Context, identity string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.attempts[identity]
	if !ok || !s.now().Before(c.expiresAt) {
		return 0, nil
	}
	return c.count, nil
}

func (s *MemoryStore) IncrementFailedAttempts(_ context.Context, identity string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.attempts[identity]
	if !ok || !now.Before(c.expiresAt) {
		c = memoryCounter{expiresAt: now.Add(s.attemptTTL)}
	}
	c.count++
	s.attempts[identity] = c
	return c.count, nil
}

func (s *MemoryStore) ResetFailedAttempts(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attempts, identity)
	return nil
}

func (s *MemoryStore) Lock(_ context.Context, identity string, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.locks[identity] = s.now().Add(d)
	return nil
}

func (s *MemoryStore) GetLockExpiry(_ context.Context, identity string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.locks[identity]
	if !ok {
		return time.Time{}, false, nil
	}
	if !s.now().Before(until) {
		delete(s.locks, identity)
		return time.Time{}, false, nil
	}
	return until, true, nil
}

func (s *MemoryStore) liveRefreshLocked(key string) (memoryRefresh, bool) {
	rec, ok := s.refresh[key]
	if !ok {
		return memoryRefresh{}, false
	}
	if !s.now().Before(rec.expiresAt) {
		s.deleteRefreshLocked(key, rec.identity)
		return memoryRefresh{}, false
	}
	return rec, true
}

func (s *MemoryStore) deleteRefreshLocked(key, identity string) {
	delete(s.refresh, key)
	if idx, ok := s.byIdentity[identity]; ok {
		delete(idx, key)
		if len(idx) == 0 {
			delete(s.byIdentity, identity)
		}
	}
}
