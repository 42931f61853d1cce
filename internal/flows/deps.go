package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
)

// Deps groups flow dependency sets. The engine builds this once.
type Deps struct {
	Login   LoginDeps
	Refresh RefreshDeps
	Verify  VerifyDeps
	Revoke  RevokeDeps
}

// TokenCodec issues and verifies signed tokens.
type TokenCodec interface {
	Issue(identity string, class jwt.Class, now time.Time) (string, *jwt.Claims, error)
	Verify(token string, expected jwt.Class, now time.Time) (*jwt.Claims, error)
	TTL(class jwt.Class) time.Duration
}

// RefreshStore is the refresh-token half of the session store.
type RefreshStore interface {
	SaveRefresh(ctx context.Context, token, identity string, ttl time.Duration) error
	IsRefreshLive(ctx context.Context, token, identity string) (bool, error)
	DeleteRefresh(ctx context.Context, token string) error
}

// Pair is an issued access/refresh token pair.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type issueFailure int

const (
	issueOK issueFailure = iota
	issueSign
	issueSave
)

// issuePair signs both tokens and persists the refresh token for its
// remaining lifetime.
func issuePair(ctx context.Context, identity string, now time.Time, tokens TokenCodec, store RefreshStore) (Pair, issueFailure, error) {
	access, accessClaims, err := tokens.Issue(identity, jwt.ClassAccess, now)
	if err != nil {
		return Pair{}, issueSign, err
	}
	refresh, refreshClaims, err := tokens.Issue(identity, jwt.ClassRefresh, now)
	if err != nil {
		return Pair{}, issueSign, err
	}

	if err := store.SaveRefresh(ctx, refresh, identity, tokens.TTL(jwt.ClassRefresh)); err != nil {
		return Pair{}, issueSave, err
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, issueOK, nil
}

func nowFunc(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
