package sessionguard

import (
	"context"
	"time"
)

// TokenPair is returned by Login and Refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// CredentialRecord is the stored credential of one identity.
type CredentialRecord struct {
	Identity   string
	SecretHash string
}

// UserProvider looks up credentials. Unknown identities return an error
// matching ErrUserNotFound; any other error aborts the login as is.
type UserProvider interface {
	GetCredential(ctx context.Context, identity string) (CredentialRecord, error)
}

// SecretHashUpdater is implemented by providers that accept rehashed
// secrets after a successful login against an outdated hash.
type SecretHashUpdater interface {
	UpdateSecretHash(ctx context.Context, identity, hash string) error
}

// UserProviderFunc adapts a function to UserProvider.
type UserProviderFunc func(ctx context.Context, identity string) (CredentialRecord, error)

func (f UserProviderFunc) GetCredential(ctx context.Context, identity string) (CredentialRecord, error) {
	return f(ctx, identity)
}

// LockoutState is a read-only view of an identity's failure counter and lock.
type LockoutState struct {
	Identity       string
	FailedAttempts int
	Locked         bool
	LockedUntil    time.Time
}
