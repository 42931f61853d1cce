package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessionguard/internal/rate"
)

// LoginFailureKind classifies why a login did not issue tokens.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidInput
	LoginFailureRateLimited
	LoginFailureLocked
	LoginFailureLookup
	LoginFailureInvalidCredentials
	LoginFailureStore
	LoginFailureIssue
)

// LoginRateLimiter is the login path of the rate limiter. CheckLogin reserves
// one unit of budget per attempt and RefundLogin hands it back after a
// successful login.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, key string) error
	RefundLogin(ctx context.Context, key string) error
}

// LoginStore is the subset of the session store used by login.
type LoginStore interface {
	RefreshStore
	IncrementFailedAttempts(ctx context.Context, identity string) (int, error)
	ResetFailedAttempts(ctx context.Context, identity string) error
	Lock(ctx context.Context, identity string, d time.Duration) error
	GetLockExpiry(ctx context.Context, identity string) (time.Time, bool, error)
}

// LockoutPolicy maps a failure count to a lock duration.
type LockoutPolicy interface {
	DurationFor(failedAttempts int) time.Duration
}

// SecretVerifier checks a secret against a stored hash.
type SecretVerifier interface {
	Verify(secret, hashed string) bool
	NeedsRehash(hashed string) bool
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Now      func() time.Time
	Rate     LoginRateLimiter
	Store    LoginStore
	Lockout  LockoutPolicy
	Tokens   TokenCodec
	Verifier SecretVerifier

	// LookupSecretHash returns the stored hash for identity. found=false
	// with a nil error means the identity does not exist.
	LookupSecretHash func(ctx context.Context, identity string) (hash string, found bool, err error)

	// DummyHash is verified against when the identity is unknown so that
	// unknown and known identities cost the same.
	DummyHash string
}

// LoginResult is the flow-local login outcome.
type LoginResult struct {
	Pair    Pair
	Failure LoginFailureKind
	Err     error

	// Attempts is the failure count after a mismatch.
	Attempts int
	// LockedUntil is set for Locked outcomes and when a mismatch applied a lock.
	LockedUntil time.Time
	// RateResetAt is set for RateLimited outcomes.
	RateResetAt time.Time
	// NeedsRehash reports a successful login against an outdated hash.
	NeedsRehash bool
}

// RunLogin authenticates identity with secret and issues a token pair.
// rateKey scopes the login rate window.
func RunLogin(ctx context.Context, identity, secret, rateKey string, deps LoginDeps) LoginResult {
	if identity == "" || secret == "" {
		return LoginResult{Failure: LoginFailureInvalidInput}
	}
	now := nowFunc(deps.Now)()

	if deps.Rate != nil {
		if err := deps.Rate.CheckLogin(ctx, rateKey); err != nil {
			var limited *rate.LimitedError
			if errors.As(err, &limited) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err, RateResetAt: limited.ResetAt}
			}
			return LoginResult{Failure: LoginFailureStore, Err: err}
		}
	}

	until, locked, err := deps.Store.GetLockExpiry(ctx, identity)
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}
	if locked && until.After(now) {
		return LoginResult{Failure: LoginFailureLocked, LockedUntil: until}
	}

	hash, found, err := deps.LookupSecretHash(ctx, identity)
	if err != nil {
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}

	var match bool
	if found {
		match = deps.Verifier.Verify(secret, hash)
	} else {
		deps.Verifier.Verify(secret, deps.DummyHash)
	}

	if !match {
		return recordMismatch(ctx, identity, now, deps)
	}

	if deps.Rate != nil {
		if err := deps.Rate.RefundLogin(ctx, rateKey); err != nil {
			return LoginResult{Failure: LoginFailureStore, Err: err}
		}
	}

	if err := deps.Store.ResetFailedAttempts(ctx, identity); err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}

	pair, failure, err := issuePair(ctx, identity, now, deps.Tokens, deps.Store)
	switch failure {
	case issueSign:
		return LoginResult{Failure: LoginFailureIssue, Err: err}
	case issueSave:
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}

	return LoginResult{Pair: pair, NeedsRehash: deps.Verifier.NeedsRehash(hash)}
}

func recordMismatch(ctx context.Context, identity string, now time.Time, deps LoginDeps) LoginResult {
	attempts, err := deps.Store.IncrementFailedAttempts(ctx, identity)
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}

	res := LoginResult{Failure: LoginFailureInvalidCredentials, Attempts: attempts}
	if deps.Lockout == nil {
		return res
	}
	if d := deps.Lockout.DurationFor(attempts); d > 0 {
		if err := deps.Store.Lock(ctx, identity, d); err != nil {
			return LoginResult{Failure: LoginFailureStore, Err: err, Attempts: attempts}
		}
		res.LockedUntil = now.Add(d)
	}
	return res
}
