// Package middleware holds the HTTP middleware of the gateway server:
// relayer bearer auth, request telemetry, and request context helpers.
package middleware

import (
	"net/http"
	"strings"

	"sessiongate/internal/security"
)

const bearerPrefix = "bearer "

// Auth returns middleware that validates the Bearer (relayer) token and
// sets the relayer id in context for protected paths. publicPaths is the
// set of exact paths that do not require a token (e.g. /healthz).
// A nil tokens provider disables authentication entirely (dev mode).
func Auth(tokens *security.TokenProvider, publicPaths map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			token := extractBearer(r)
			if token == "" {
				http.Error(w, "missing or invalid authorization", http.StatusUnauthorized)
				return
			}
			relayerID, err := tokens.Validate(token)
			if err != nil {
				http.Error(w, "missing or invalid authorization", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRelayerID(r.Context(), relayerID)))
		})
	}
}

// extractBearer returns the Bearer token from the request, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
