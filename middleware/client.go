package middleware

import (
	"net"
	"net/http"

	"github.com/MrEthical07/sessionguard"
)

// ClientContext stores the client IP and User-Agent in the request context.
// The IP comes from RemoteAddr; put a proxy-aware middleware such as chi's
// RealIP in front when running behind a load balancer.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := sessionguard.WithClientIP(r.Context(), ClientIP(r))
		if ua := r.UserAgent(); ua != "" {
			ctx = sessionguard.WithUserAgent(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the host part of r.RemoteAddr, or RemoteAddr itself when
// it carries no port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
