package sessionguard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/sessionguard/internal"
	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
	"github.com/MrEthical07/sessionguard/internal/flows"
	"github.com/MrEthical07/sessionguard/internal/rate"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/lockout"
	"github.com/MrEthical07/sessionguard/password"
	"github.com/MrEthical07/sessionguard/session"
)

const maxIdentityLength = 256

// Engine runs login, refresh, revocation and access verification. It is
// safe for concurrent use once built.
type Engine struct {
	config  Config
	store   session.Store
	tokens  *jwt.Manager
	hasher  *password.Multi
	policy  password.Policy
	lockout *lockout.Policy
	limiter *rate.Limiter
	users   UserProvider
	audit   *internalaudit.Dispatcher
	metrics *Metrics
	logger  zerolog.Logger
	now     func() time.Time
	flows   flows.Deps

	closers []func()
	closed  atomic.Bool
}

// Close flushes buffered audit events and releases connections the engine
// opened itself. Clients passed to the builder are left open.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.audit.Close()
	for _, c := range e.closers {
		c()
	}
}

// AuditDropped counts audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Store exposes the session store, e.g. for PurgeExpired on Postgres.
func (e *Engine) Store() session.Store {
	if e == nil {
		return nil
	}
	return e.store
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

// Login authenticates identity and issues a token pair.
//
// clientKey scopes the login rate window; when empty the client IP from
// ctx is used, then the identity. Failures return ErrInvalidInput,
// *RateLimitedError, *AccountLockedError, ErrInvalidCredentials,
// ErrStoreUnavailable or the provider's own error.
func (e *Engine) Login(ctx context.Context, identity, secret, clientKey string) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricLoginLatency, time.Since(start)) }()

	if err := validateCredentials(identity, secret); err != nil {
		return TokenPair{}, err
	}

	rateKey := internal.RateKey(clientKey, clientIPFromContext(ctx), identity)
	res := flows.RunLogin(ctx, identity, secret, rateKey, e.flows.Login)

	switch res.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, AuditEventLoginSuccess, true, identity, rateKey, nil, nil)
		e.logger.Info().Str("identity", identity).Msg("login succeeded")
		if res.NeedsRehash {
			e.upgradeSecretHash(ctx, identity, secret)
		}
		return pairFromFlow(res.Pair), nil

	case flows.LoginFailureInvalidInput:
		return TokenPair{}, ErrInvalidInput

	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.metricInc(MetricRateLimitHit)
		e.emitAudit(ctx, AuditEventLoginRateLimited, false, identity, rateKey, res.Err, func() map[string]string {
			return map[string]string{"reset_at": res.RateResetAt.UTC().Format(time.RFC3339)}
		})
		e.logger.Warn().Str("identity", identity).Str("client_key", rateKey).Time("reset_at", res.RateResetAt).Msg("login rate limited")
		return TokenPair{}, res.Err

	case flows.LoginFailureLocked:
		err := &AccountLockedError{Until: res.LockedUntil}
		e.metricInc(MetricLoginLocked)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditEventLoginFailure, false, identity, rateKey, err, nil)
		e.logger.Warn().Str("identity", identity).Str("client_key", rateKey).Time("locked_until", res.LockedUntil).Msg("login against locked account")
		return TokenPair{}, err

	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditEventLoginFailure, false, identity, rateKey, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"attempts": fmt.Sprint(res.Attempts)}
		})
		e.logger.Warn().Str("identity", identity).Str("client_key", rateKey).Str("ip", clientIPFromContext(ctx)).Int("attempts", res.Attempts).Msg("login failed")
		if !res.LockedUntil.IsZero() {
			e.metricInc(MetricAccountLocked)
			e.emitAudit(ctx, AuditEventAccountLocked, true, identity, rateKey, nil, func() map[string]string {
				return map[string]string{
					"attempts": fmt.Sprint(res.Attempts),
					"until":    res.LockedUntil.UTC().Format(time.RFC3339),
				}
			})
			e.logger.Warn().Str("identity", identity).Int("attempts", res.Attempts).Time("locked_until", res.LockedUntil).Msg("account locked")
		}
		return TokenPair{}, ErrInvalidCredentials

	case flows.LoginFailureLookup:
		e.metricInc(MetricLoginFailure)
		e.logger.Error().Err(res.Err).Str("identity", identity).Msg("credential lookup failed")
		return TokenPair{}, res.Err

	case flows.LoginFailureStore:
		e.metricInc(MetricLoginFailure)
		return TokenPair{}, e.storeFailure(ctx, "login", identity, asUnavailable(res.Err))

	default:
		e.metricInc(MetricLoginFailure)
		e.logger.Error().Err(res.Err).Str("identity", identity).Msg("token issue failed")
		return TokenPair{}, fmt.Errorf("%w: %v", ErrTokenIssue, res.Err)
	}
}

// Refresh rotates a refresh token. The presented token is dead afterwards
// whether or not issuing the replacement succeeds.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}

	res := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, AuditEventRefreshSuccess, true, res.Identity, "", nil, nil)
		e.logger.Info().Str("identity", res.Identity).Msg("refresh rotated")
		return pairFromFlow(res.Pair), nil

	case flows.RefreshFailureToken:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditEventRefreshInvalid, false, "", "", res.Err, nil)
		e.logger.Debug().Err(res.Err).Msg("refresh token rejected")
		return TokenPair{}, res.Err

	case flows.RefreshFailureRevoked:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, AuditEventRefreshReuse, false, res.Identity, "", ErrTokenRevokedOrUnknown, nil)
		e.logger.Warn().Str("identity", res.Identity).Msg("refresh token not live")
		return TokenPair{}, ErrTokenRevokedOrUnknown

	case flows.RefreshFailureStore:
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, e.storeFailure(ctx, "refresh", res.Identity, asUnavailable(res.Err))

	default:
		e.metricInc(MetricRefreshFailure)
		e.logger.Error().Err(res.Err).Str("identity", res.Identity).Msg("token issue failed")
		return TokenPair{}, fmt.Errorf("%w: %v", ErrTokenIssue, res.Err)
	}
}

// Revoke invalidates one refresh token. Unknown tokens are not an error.
func (e *Engine) Revoke(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := flows.RunRevoke(ctx, refreshToken, e.flows.Revoke); err != nil {
		return e.storeFailure(ctx, "revoke", "", asUnavailable(err))
	}
	e.metricInc(MetricRevoke)
	e.emitAudit(ctx, AuditEventRevoke, true, "", "", nil, nil)
	return nil
}

// RevokeAll invalidates every refresh token of identity. Access tokens
// already issued stay valid until they expire.
func (e *Engine) RevokeAll(ctx context.Context, identity string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if identity == "" {
		return ErrInvalidInput
	}
	if err := flows.RunRevokeAll(ctx, identity, e.flows.Revoke); err != nil {
		return e.storeFailure(ctx, "revoke_all", identity, asUnavailable(err))
	}
	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, AuditEventRevokeAll, true, identity, "", nil, nil)
	e.logger.Info().Str("identity", identity).Msg("all sessions revoked")
	return nil
}

// VerifyAccess returns the identity of a valid access token. Every failure
// returns ErrUnauthenticated; the reason is only logged and audited.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	start := time.Now()
	res := flows.RunVerifyAccess(accessToken, e.flows.Verify)
	e.metrics.Observe(MetricVerifyLatency, time.Since(start))

	if res.Failure != flows.VerifyFailureNone {
		e.metricInc(MetricAccessRejected)
		e.emitAudit(ctx, AuditEventAccessRejected, false, "", "", ErrUnauthenticated, func() map[string]string {
			return map[string]string{"reason": res.Failure.String()}
		})
		e.logger.Debug().Str("reason", res.Failure.String()).Msg("access token rejected")
		return "", ErrUnauthenticated
	}

	e.metricInc(MetricAccessVerified)
	return res.Identity, nil
}

// Allow counts one request from clientKey against the general rate window.
func (e *Engine) Allow(ctx context.Context, clientKey string) error {
	if err := e.ready(); err != nil {
		return err
	}
	err := e.limiter.Allow(ctx, clientKey)
	if err == nil {
		return nil
	}

	var limited *RateLimitedError
	if errors.As(err, &limited) {
		e.metricInc(MetricRateLimitHit)
		e.emitAudit(ctx, AuditEventRateLimitTriggered, false, "", clientKey, err, func() map[string]string {
			return map[string]string{"scope": "general"}
		})
		return err
	}
	return e.storeFailure(ctx, "allow", "", asUnavailable(err))
}

// HashSecret checks secret against the password policy and hashes it with
// the configured algorithm.
func (e *Engine) HashSecret(secret string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if err := e.policy.Validate(secret); err != nil {
		return "", err
	}
	return e.hasher.Hash(secret)
}

// VerifySecret reports whether secret matches hash in any supported format.
func (e *Engine) VerifySecret(secret, hash string) bool {
	if e.ready() != nil {
		return false
	}
	return e.hasher.Verify(secret, hash)
}

// LockoutState reads the failure counter and lock of identity without
// changing them.
func (e *Engine) LockoutState(ctx context.Context, identity string) (LockoutState, error) {
	if err := e.ready(); err != nil {
		return LockoutState{}, err
	}
	if identity == "" {
		return LockoutState{}, ErrInvalidInput
	}

	attempts, err := e.store.GetFailedAttempts(ctx, identity)
	if err != nil {
		return LockoutState{}, asUnavailable(err)
	}
	until, locked, err := e.store.GetLockExpiry(ctx, identity)
	if err != nil {
		return LockoutState{}, asUnavailable(err)
	}

	state := LockoutState{Identity: identity, FailedAttempts: attempts}
	if locked && until.After(e.now()) {
		state.Locked = true
		state.LockedUntil = until
	}
	return state, nil
}

func (e *Engine) lookupSecretHash(ctx context.Context, identity string) (string, bool, error) {
	rec, err := e.users.GetCredential(ctx, identity)
	if errors.Is(err, ErrUserNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.SecretHash, true, nil
}

func (e *Engine) upgradeSecretHash(ctx context.Context, identity, secret string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	updater, ok := e.users.(SecretHashUpdater)
	if !ok {
		return
	}

	hash, err := e.hasher.Hash(secret)
	if err == nil {
		err = updater.UpdateSecretHash(ctx, identity, hash)
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("identity", identity).Msg("secret rehash failed")
		return
	}

	e.metricInc(MetricSecretRehashed)
	e.emitAudit(ctx, AuditEventSecretRehashed, true, identity, "", nil, func() map[string]string {
		return map[string]string{"algorithm": e.hasher.Algorithm()}
	})
}

func validateCredentials(identity, secret string) error {
	err := validation.Errors{
		"identity": validation.Validate(identity, validation.Required, validation.RuneLength(1, maxIdentityLength)),
		"secret":   validation.Validate(secret, validation.Required),
	}.Filter()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func asUnavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func pairFromFlow(p flows.Pair) TokenPair {
	return TokenPair{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}
