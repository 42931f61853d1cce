package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrStoreUnavailable marks transient backend failures. Callers may retry.
var ErrStoreUnavailable = errors.New("session store unavailable")

// DefaultAttemptTTL bounds how long a failed-attempt counter survives without a reset.
const DefaultAttemptTTL = 24 * time.Hour

// Store is the durable state behind login, refresh and revocation.
type Store interface {
	SaveRefresh(ctx context.Context, token, identity string, ttl time.Duration) error
	IsRefreshLive(ctx context.Context, token, identity string) (bool, error)
	DeleteRefresh(ctx context.Context, token string) error
	DeleteAllForIdentity(ctx context.Context, identity string) error

	GetFailedAttempts(ctx context.Context, identity string) (int, error)
	IncrementFailedAttempts(ctx context.Context, identity string) (int, error)
	ResetFailedAttempts(ctx context.Context, identity string) error
	Lock(ctx context.Context, identity string, d time.Duration) error
	GetLockExpiry(ctx context.Context, identity string) (time.Time, bool, error)
}

// RefreshConsumer is implemented by stores that can check and delete a
// refresh record in one atomic step. It reports whether the record existed
// for identity; only one concurrent caller sees true.
type RefreshConsumer interface {
	ConsumeRefresh(ctx context.Context, token, identity string) (bool, error)
}

// TokenKey returns the storage key for a refresh token.
func TokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func attemptTTLOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultAttemptTTL
	}
	return d
}

func nowOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
