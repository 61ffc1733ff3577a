// Package middleware provides HTTP middleware for the image analyzer API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/image-analyzer/internal/identity"
	"github.com/spherical/image-analyzer/internal/observability"
)

type contextKey string

// ProviderKey is the context key for the caller's identity provider.
const ProviderKey contextKey = "identity_provider"

// UserIDHeader pins a session to a known user when the deployment trusts it.
const UserIDHeader = "X-User-ID"

// IdentityConfig controls which caller assertions the API accepts.
type IdentityConfig struct {
	// TrustUserHeader honors X-User-ID. Only safe behind a gateway that
	// authenticates the caller and overwrites the header.
	TrustUserHeader bool
	// TokenSecret verifies HS256 bearer tokens. Bearer tokens are rejected
	// when it is empty.
	TokenSecret string
}

// Identity resolves how the caller signs in. A bearer token must verify
// against cfg.TokenSecret, X-User-ID is honored only when trusted, and
// anything else signs in anonymously.
func Identity(cfg IdentityConfig) func(http.Handler) http.Handler {
	secret := []byte(cfg.TokenSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var p identity.Provider = identity.AnonymousProvider{}

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
					http.Error(w, `{"error": "invalid authorization header format"}`, http.StatusUnauthorized)
					return
				}
				userID, err := identity.VerifyToken(strings.TrimSpace(parts[1]), secret)
				if err != nil {
					http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
					return
				}
				p = identity.StaticProvider{UserID: userID}
			} else if cfg.TrustUserHeader {
				if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
					p = identity.StaticProvider{UserID: userID}
				}
			}

			ctx := context.WithValue(r.Context(), ProviderKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProviderFromContext returns the provider set by Identity, or anonymous.
func ProviderFromContext(ctx context.Context) identity.Provider {
	if p, ok := ctx.Value(ProviderKey).(identity.Provider); ok {
		return p
	}
	return identity.AnonymousProvider{}
}

// RequestID copies chi's request ID into the logging context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(observability.ContextWithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
