package middleware

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/sessionguard"
)

// StatusCode maps an engine error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, sessionguard.ErrInvalidInput),
		errors.Is(err, sessionguard.ErrPolicyViolation):
		return http.StatusBadRequest
	case errors.Is(err, sessionguard.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, sessionguard.ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, sessionguard.ErrInvalidCredentials),
		sessionguard.PublicError(err) == sessionguard.ErrUnauthenticated:
		return http.StatusUnauthorized
	case errors.Is(err, sessionguard.ErrStoreUnavailable),
		errors.Is(err, sessionguard.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a plain-text response with its mapped status.
// Token errors are collapsed to a single unauthorized message, and a
// locked account gets Retry-After.
func WriteError(w http.ResponseWriter, err error) {
	var locked *sessionguard.AccountLockedError
	if errors.As(err, &locked) {
		setRetryAfter(w, locked.Until)
	}
	var limited *sessionguard.RateLimitedError
	if errors.As(err, &limited) {
		setRetryAfter(w, limited.ResetAt)
	}

	code := StatusCode(err)
	http.Error(w, http.StatusText(code), code)
}
