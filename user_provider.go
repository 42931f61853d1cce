package sessionguard

import (
	"context"
	"sync"
)

// MemoryUserProvider is an in-process UserProvider for examples and tests.
type MemoryUserProvider struct {
	mu    sync.RWMutex
	users map[string]string
}

var (
	_ UserProvider      = (*MemoryUserProvider)(nil)
	_ SecretHashUpdater = (*MemoryUserProvider)(nil)
)

func NewMemoryUserProvider() *MemoryUserProvider {
	return &MemoryUserProvider{users: make(map[string]string)}
}

// Put stores an already hashed secret for identity.
func (p *MemoryUserProvider) Put(identity, hash string) {
	p.mu.Lock()
	p.users[identity] = hash
	p.mu.Unlock()
}

func (p *MemoryUserProvider) GetCredential(_ context.Context, identity string) (CredentialRecord, error) {
	p.mu.RLock()
	hash, ok := p.users[identity]
	p.mu.RUnlock()
	if !ok {
		return CredentialRecord{}, ErrUserNotFound
	}
	return CredentialRecord{Identity: identity, SecretHash: hash}, nil
}

func (p *MemoryUserProvider) UpdateSecretHash(_ context.Context, identity, hash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[identity]; !ok {
		return ErrUserNotFound
	}
	p.users[identity] = hash
	return nil
}
