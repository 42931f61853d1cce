// Package sessionguard issues, verifies, rotates and revokes access and
// refresh tokens, with progressive account lockout and fixed-window rate
// limiting on top of a pluggable session store.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// sessionguard is the public surface. It exposes [Engine], [Builder],
// [Config] and value types ([TokenPair], [LockoutState], [SecurityReport]).
// Flow orchestration, rate limiting and audit dispatch live under internal/.
// The building blocks are public packages: password, jwt, session and
// lockout.
//
// # Error contract
//
// VerifyAccess only ever returns [ErrUnauthenticated]. Refresh returns the
// precise token error so that callers can log it; pass it through
// [PublicError] before it leaves the trust boundary. Store failures match
// [ErrStoreUnavailable] and are safe to retry.
package sessionguard
