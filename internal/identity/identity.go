// Package identity resolves the user ID that scopes a session's
// configuration document.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/observability"
)

// Provider signs a session in and returns an opaque user ID.
type Provider interface {
	SignIn(ctx context.Context) (string, error)
}

// AnonymousProvider issues a fresh random identity per sign-in.
type AnonymousProvider struct{}

func (AnonymousProvider) SignIn(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

// StaticProvider always returns the same user ID. The CLI uses it to keep
// one identity across runs.
type StaticProvider struct {
	UserID string
}

func (p StaticProvider) SignIn(context.Context) (string, error) {
	if p.UserID == "" {
		return "", errors.New("static user ID is empty")
	}
	return p.UserID, nil
}

// CustomTokenProvider exchanges a JWT for the user ID carried in its uid
// (or sub) claim. With a Secret the HS256 signature and time claims are
// verified. Without one the claims are read as-is, which only suits a token
// the operator configured locally.
type CustomTokenProvider struct {
	Token  string
	Secret []byte
}

type tokenClaims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

func (c tokenClaims) userID() (string, error) {
	switch {
	case c.UID != "":
		return c.UID, nil
	case c.Subject != "":
		return c.Subject, nil
	default:
		return "", errors.New("custom token: no uid claim")
	}
}

func (p CustomTokenProvider) SignIn(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(p.Secret) > 0 {
		return VerifyToken(p.Token, p.Secret)
	}

	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(p.Token, &claims); err != nil {
		return "", fmt.Errorf("custom token: %w", err)
	}
	return claims.userID()
}

// VerifyToken checks an HS256 token against secret and returns the user ID
// it carries.
func VerifyToken(token string, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("custom token: no verification secret configured")
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("custom token: %w", err)
	}
	return claims.userID()
}

// CachedProvider remembers the first identity Inner returns in a file so
// later runs on the same machine reuse it.
type CachedProvider struct {
	Path  string
	Inner Provider
}

func (p CachedProvider) SignIn(ctx context.Context) (string, error) {
	if data, err := os.ReadFile(p.Path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id, err := p.Inner.SignIn(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o700); err != nil {
		return "", fmt.Errorf("create identity dir: %w", err)
	}
	if err := os.WriteFile(p.Path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write identity file: %w", err)
	}
	return id, nil
}

// FromSettings picks a provider: a custom token wins, then a pinned user
// ID, then anonymous sign-in. A non-empty secret makes the token verified.
func FromSettings(customToken, secret, userID string) Provider {
	switch {
	case customToken != "":
		p := CustomTokenProvider{Token: customToken}
		if secret != "" {
			p.Secret = []byte(secret)
		}
		return p
	case userID != "":
		return StaticProvider{UserID: userID}
	default:
		return AnonymousProvider{}
	}
}

// Acquire signs in once. Any failure degrades to the guest identity so the
// rest of the session keeps working.
func Acquire(ctx context.Context, p Provider, logger *observability.Logger) string {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if p == nil {
		logger.Warn().Msg("No identity provider configured, using guest identity")
		return domain.GuestUserID
	}

	userID, err := p.SignIn(ctx)
	if err != nil || userID == "" {
		logger.Warn().Err(err).Msg("Sign-in failed, using guest identity")
		return domain.GuestUserID
	}
	return userID
}
