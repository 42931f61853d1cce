package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
)

type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureToken
	RefreshFailureRevoked
	RefreshFailureStore
	RefreshFailureIssue
)

// RefreshConsumer is an optional atomic check-and-delete on the store.
type RefreshConsumer interface {
	ConsumeRefresh(ctx context.Context, token, identity string) (bool, error)
}

type RefreshDeps struct {
	Now    func() time.Time
	Tokens TokenCodec
	Store  RefreshStore
}

type RefreshResult struct {
	Pair     Pair
	Identity string
	Failure  RefreshFailureKind
	Err      error
}

// RunRefresh rotates a refresh token. The presented token is removed before
// the replacement is issued, so it can never be used twice.
func RunRefresh(ctx context.Context, token string, deps RefreshDeps) RefreshResult {
	now := nowFunc(deps.Now)()

	claims, err := deps.Tokens.Verify(token, jwt.ClassRefresh, now)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureToken, Err: err}
	}
	identity := claims.Identity

	live, err := consume(ctx, token, identity, deps.Store)
	if err != nil {
		return RefreshResult{Identity: identity, Failure: RefreshFailureStore, Err: err}
	}
	if !live {
		return RefreshResult{Identity: identity, Failure: RefreshFailureRevoked}
	}

	pair, failure, err := issuePair(ctx, identity, now, deps.Tokens, deps.Store)
	switch failure {
	case issueSign:
		return RefreshResult{Identity: identity, Failure: RefreshFailureIssue, Err: err}
	case issueSave:
		return RefreshResult{Identity: identity, Failure: RefreshFailureStore, Err: err}
	}
	return RefreshResult{Pair: pair, Identity: identity}
}

func consume(ctx context.Context, token, identity string, store RefreshStore) (bool, error) {
	if c, ok := store.(RefreshConsumer); ok {
		return c.ConsumeRefresh(ctx, token, identity)
	}

	live, err := store.IsRefreshLive(ctx, token, identity)
	if err != nil || !live {
		return false, err
	}
	if err := store.DeleteRefresh(ctx, token); err != nil {
		return false, err
	}
	return true, nil
}
