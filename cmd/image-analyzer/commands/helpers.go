package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spherical/image-analyzer/internal/config"
	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/identity"
	"github.com/spherical/image-analyzer/internal/session"
)

// openSession builds the shared services and signs the CLI user in. The
// returned func releases both.
func openSession(ctx context.Context, events chan<- domain.Event) (*session.Session, func(), error) {
	svc, err := session.NewServices(ctx, appConfig, logger)
	if err != nil {
		return nil, nil, err
	}

	sess, err := svc.Start(ctx, cliIdentity(appConfig.Identity), session.StartOptions{Events: events})
	if err != nil {
		svc.Close()
		return nil, nil, fmt.Errorf("start session: %w", err)
	}

	logger.Debug().
		Str("user_id", sess.UserID).
		Str("document", sess.Document.Path()).
		Msg("Session ready")

	return sess, func() {
		sess.Close()
		if err := svc.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close configuration store")
		}
	}, nil
}

// cliIdentity keeps anonymous CLI users on the same document across runs.
func cliIdentity(cfg config.IdentityConfig) identity.Provider {
	p := identity.FromSettings(cfg.CustomToken, cfg.TokenSecret, cfg.UserID)
	if _, anonymous := p.(identity.AnonymousProvider); !anonymous {
		return p
	}

	path := cfg.CacheFile
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return p
		}
		path = filepath.Join(dir, "image-analyzer", "identity")
	}
	return identity.CachedProvider{Path: path, Inner: p}
}
