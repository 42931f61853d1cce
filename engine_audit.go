package sessionguard

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
)

// Audit event names.
const (
	AuditEventLoginSuccess       = "login_success"
	AuditEventLoginFailure       = "login_failure"
	AuditEventLoginRateLimited   = "login_rate_limited"
	AuditEventAccountLocked      = "account_locked"
	AuditEventRefreshSuccess     = "refresh_success"
	AuditEventRefreshInvalid     = "refresh_invalid"
	AuditEventRefreshReuse       = "refresh_reuse_detected"
	AuditEventRevoke             = "revoke"
	AuditEventRevokeAll          = "revoke_all"
	AuditEventAccessRejected     = "access_rejected"
	AuditEventRateLimitTriggered = "rate_limit_triggered"
	AuditEventStoreUnavailable   = "store_unavailable"
	AuditEventSecretRehashed     = "secret_rehashed"
)

// AuditErrorCode is the stable error code recorded on failed events.
type AuditErrorCode string

const (
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTypeMismatch       AuditErrorCode = "type_mismatch"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrRevoked            AuditErrorCode = "revoked_or_unknown"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identity string,
	clientKey string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	event := internalaudit.Event{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Identity:  identity,
		ClientKey: clientKey,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// storeFailure records a backend outage and returns err unchanged.
func (e *Engine) storeFailure(ctx context.Context, op, identity string, err error) error {
	e.metricInc(MetricStoreUnavailable)
	e.logger.Error().Err(err).Str("op", op).Str("identity", identity).Msg("session store unavailable")
	e.emitAudit(ctx, AuditEventStoreUnavailable, false, identity, "", err, func() map[string]string {
		return map[string]string{"op": op}
	})
	return err
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPolicyViolation):
		return auditErrInvalidInput
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserNotFound):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTypeMismatch):
		return auditErrTypeMismatch
	case errors.Is(err, ErrSignatureInvalid), errors.Is(err, ErrUnauthenticated):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenRevokedOrUnknown):
		return auditErrRevoked
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
