package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey struct{ name string }

var (
	relayerIDKey = contextKey{"relayer_id"}
	clientIPKey  = contextKey{"client_ip"}
)

// WithRelayerID returns a context with the authenticated relayer id set.
func WithRelayerID(ctx context.Context, relayerID string) context.Context {
	return context.WithValue(ctx, relayerIDKey, relayerID)
}

// GetRelayerID returns the relayer id from context and true if set; otherwise "", false.
func GetRelayerID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(relayerIDKey).(string)
	return v, ok
}

// GetClientIP returns the client IP from context and true if set; otherwise "", false.
func GetClientIP(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(clientIPKey).(string)
	return v, ok
}

// ClientIPContext stores the resolved client IP in the request context so
// downstream consumers (e.g. the decision logger) can read it.
func ClientIPContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey, ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the client IP from forwarding headers or the remote
// address, or "unknown".
func ClientIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		if s != "" {
			return s
		}
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-Ip")); s != "" {
		return s
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
