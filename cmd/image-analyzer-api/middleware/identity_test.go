package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/image-analyzer/internal/identity"
	"github.com/spherical/image-analyzer/internal/observability"
)

const testSecret = "issuer-secret"

func signedToken(t *testing.T, secret, uid string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"uid": uid}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func providerFor(t *testing.T, cfg IdentityConfig, setup func(r *http.Request)) (identity.Provider, int) {
	t.Helper()
	var got identity.Provider
	h := Identity(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ProviderFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	setup(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return got, rec.Code
}

func TestIdentity(t *testing.T) {
	trusted := IdentityConfig{TrustUserHeader: true, TokenSecret: testSecret}
	unsigned := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`)) + "." +
		base64.RawURLEncoding.EncodeToString([]byte(`{"uid":"victim"}`)) + "."

	tests := []struct {
		name   string
		cfg    IdentityConfig
		setup  func(r *http.Request)
		want   identity.Provider
		status int
	}{
		{
			name:   "anonymous",
			setup:  func(*http.Request) {},
			want:   identity.AnonymousProvider{},
			status: http.StatusOK,
		},
		{
			name:   "user header ignored by default",
			setup:  func(r *http.Request) { r.Header.Set(UserIDHeader, "alice") },
			want:   identity.AnonymousProvider{},
			status: http.StatusOK,
		},
		{
			name:   "trusted user header",
			cfg:    trusted,
			setup:  func(r *http.Request) { r.Header.Set(UserIDHeader, "alice") },
			want:   identity.StaticProvider{UserID: "alice"},
			status: http.StatusOK,
		},
		{
			name: "verified bearer token wins",
			cfg:  trusted,
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, "bob"))
				r.Header.Set(UserIDHeader, "alice")
			},
			want:   identity.StaticProvider{UserID: "bob"},
			status: http.StatusOK,
		},
		{
			name: "forged signature",
			cfg:  trusted,
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signedToken(t, "attacker", "victim"))
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "unsigned token",
			cfg:    trusted,
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+unsigned) },
			status: http.StatusUnauthorized,
		},
		{
			name: "bearer token without secret",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, "bob"))
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "malformed header",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Basic") },
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, status := providerFor(t, tt.cfg, tt.setup)
			assert.Equal(t, tt.status, status)
			if tt.want != nil {
				assert.Equal(t, tt.want, got)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var got string
	h := chimiddleware.RequestID(RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = observability.RequestIDFromContext(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "req-7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-7", got)
}
