package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/sessionguard"
)

// KeyFunc selects the rate limit key for a request.
type KeyFunc func(*http.Request) string

// RateLimit charges every request to the general window of key(r). Denied
// requests get 429 with Retry-After; a store outage gets 503.
// A nil key uses ClientIP.
func RateLimit(engine *sessionguard.Engine, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := engine.Allow(r.Context(), key(r))
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			var limited *sessionguard.RateLimitedError
			if errors.As(err, &limited) {
				setRetryAfter(w, limited.ResetAt)
			}
			http.Error(w, http.StatusText(StatusCode(err)), StatusCode(err))
		})
	}
}

func setRetryAfter(w http.ResponseWriter, resetAt time.Time) {
	if resetAt.IsZero() {
		return
	}
	secs := int(math.Ceil(time.Until(resetAt).Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}
