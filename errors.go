package sessionguard

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/MrEthical07/sessionguard/session"
)

var (
	// ErrInvalidInput is returned for empty identities, secrets or tokens.
	ErrInvalidInput = password.ErrInvalidInput
	// ErrPolicyViolation is returned by HashSecret when the secret fails the password policy.
	ErrPolicyViolation = password.ErrPolicyViolation
	// ErrInvalidCredentials is returned for unknown identities and wrong secrets alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is matched by *AccountLockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrRateLimited is matched by *RateLimitedError.
	ErrRateLimited = rate.ErrRateLimited
	// ErrTokenExpired is returned by Refresh for refresh tokens at or past expiry.
	ErrTokenExpired = jwt.ErrExpired
	// ErrSignatureInvalid covers bad signatures, foreign algorithms and malformed tokens.
	ErrSignatureInvalid = jwt.ErrSignatureInvalid
	// ErrTypeMismatch is returned when a token of the other class is presented.
	ErrTypeMismatch = jwt.ErrTypeMismatch
	// ErrTokenRevokedOrUnknown is returned by Refresh for a valid token that is not live.
	ErrTokenRevokedOrUnknown = errors.New("refresh token revoked or unknown")
	// ErrUnauthenticated is the only error VerifyAccess returns.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrStoreUnavailable marks transient store failures. Callers may retry.
	ErrStoreUnavailable = session.ErrStoreUnavailable
	// ErrUserNotFound is returned by a UserProvider for unknown identities.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned by a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrTokenIssue is returned when signing a token fails.
	ErrTokenIssue = errors.New("token issue failed")
)

// AccountLockedError reports a login attempt against a locked identity.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RateLimitedError carries the reset time of the exhausted window.
type RateLimitedError = rate.LimitedError

// PublicError maps err for callers outside the trust boundary. Every token
// failure becomes ErrUnauthenticated; other errors pass through.
func PublicError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrExpired),
		errors.Is(err, jwt.ErrSignatureInvalid),
		errors.Is(err, jwt.ErrTypeMismatch),
		errors.Is(err, jwt.ErrInvalidClaims),
		errors.Is(err, ErrTokenRevokedOrUnknown):
		return ErrUnauthenticated
	default:
		return err
	}
}
