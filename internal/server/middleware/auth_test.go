package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sessiongate/internal/security"
)

func authedHandler(t *testing.T, wantRelayer string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantRelayer != "" {
			got, ok := GetRelayerID(r.Context())
			if !ok || got != wantRelayer {
				t.Errorf("relayer id = %q (ok=%v), want %q", got, ok, wantRelayer)
			}
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_NilProviderDisablesAuth(t *testing.T) {
	h := Auth(nil, nil)(authedHandler(t, ""))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/operations", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuth_PublicPath(t *testing.T) {
	tokens := security.NewTokenProvider([]byte("secret"), "sessiongate", time.Hour)
	h := Auth(tokens, map[string]bool{"/healthz": true})(authedHandler(t, ""))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	tokens := security.NewTokenProvider([]byte("secret"), "sessiongate", time.Hour)
	h := Auth(tokens, nil)(authedHandler(t, ""))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/operations", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	tokens := security.NewTokenProvider([]byte("secret"), "sessiongate", time.Hour)
	h := Auth(tokens, nil)(authedHandler(t, ""))

	req := httptest.NewRequest(http.MethodGet, "/v1/operations", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_ValidTokenSetsRelayerID(t *testing.T) {
	tokens := security.NewTokenProvider([]byte("secret"), "sessiongate", time.Hour)
	token, _, err := tokens.Issue("relayer-7")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	h := Auth(tokens, nil)(authedHandler(t, "relayer-7"))

	req := httptest.NewRequest(http.MethodGet, "/v1/operations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"BEARER abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := extractBearer(r); got != tt.want {
			t.Errorf("extractBearer(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestClientIPContext(t *testing.T) {
	var got string
	h := ClientIPContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetClientIP(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "1.2.3.4" {
		t.Errorf("context client ip = %q, want 1.2.3.4", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"forwarded single", "1.2.3.4", "", "9.9.9.9:1234", "1.2.3.4"},
		{"forwarded chain", "1.2.3.4, 5.6.7.8", "", "9.9.9.9:1234", "1.2.3.4"},
		{"real ip", "", "4.3.2.1", "9.9.9.9:1234", "4.3.2.1"},
		{"remote addr", "", "", "9.9.9.9:1234", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-Ip", tt.realIP)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
