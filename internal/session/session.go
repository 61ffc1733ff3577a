// Package session wires the pipeline collaborators together and manages
// per-user sessions for the CLI and the HTTP API.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/image-analyzer/internal/config"
	"github.com/spherical/image-analyzer/internal/configstore"
	"github.com/spherical/image-analyzer/internal/domain"
	"github.com/spherical/image-analyzer/internal/identity"
	"github.com/spherical/image-analyzer/internal/llm"
	"github.com/spherical/image-analyzer/internal/observability"
	"github.com/spherical/image-analyzer/internal/pipeline"
	"github.com/spherical/image-analyzer/internal/webhook"
)

// Services are shared by every session of a process.
type Services struct {
	AppID                string
	Extractor            domain.Extractor
	Deriver              domain.ContentDeriver
	Notifier             domain.Notifier
	Store                configstore.Store
	SavedDisplayDuration time.Duration
	Logger               *observability.Logger
}

// NewServices builds the Gemini client, the webhook dispatcher and the
// configuration store described by cfg.
func NewServices(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Services, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	client := llm.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.Model,
		llm.WithTimeout(cfg.Gemini.RequestTimeout),
		llm.WithVisionRetryPolicy(llm.RetryPolicy{
			MaxAttempts:    cfg.Gemini.MaxAttempts,
			InitialBackoff: cfg.Gemini.InitialBackoff,
		}),
		llm.WithLogger(logger.WithOperation("gemini")),
	)

	store, err := configstore.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open configuration store: %w", err)
	}

	return &Services{
		AppID:                cfg.AppID,
		Extractor:            client,
		Deriver:              client,
		Notifier:             webhook.NewDispatcher(cfg.Webhook.Timeout, logger.WithOperation("webhook")),
		Store:                store,
		SavedDisplayDuration: cfg.UI.SavedDisplayDuration,
		Logger:               logger,
	}, nil
}

// Close releases the configuration store.
func (s *Services) Close() error {
	return s.Store.Close()
}

// Session is one user's pipeline plus its configuration subscription.
type Session struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	Document     *configstore.Document
	Orchestrator *pipeline.Orchestrator

	cancel context.CancelFunc
	stop   func()
	done   chan struct{}
	once   sync.Once
}

// StartOptions tune a new session.
type StartOptions struct {
	Events chan<- domain.Event
	// Watch keeps the cached configuration in sync with the store for the
	// life of the session. Without it only the current document is loaded.
	Watch bool
}

// Start signs in with provider, binds the user's configuration document and
// loads it before returning.
func (s *Services) Start(ctx context.Context, provider identity.Provider, opts StartOptions) (*Session, error) {
	if s.Logger == nil {
		s.Logger = observability.NopLogger()
	}
	userID := identity.Acquire(ctx, provider, s.Logger)
	id := uuid.NewString()
	logger := s.Logger.WithSession(id, userID)

	doc := configstore.NewDocument(s.Store, configstore.DocumentPath(s.AppID, userID))
	orch := pipeline.New(pipeline.Dependencies{
		Extractor:    s.Extractor,
		Deriver:      s.Deriver,
		Notifier:     s.Notifier,
		ConfigWriter: doc,
	}, pipeline.Options{
		SavedDisplayDuration: s.SavedDisplayDuration,
		Events:               opts.Events,
		Logger:               logger,
	})

	sess := &Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    time.Now(),
		Document:     doc,
		Orchestrator: orch,
		done:         make(chan struct{}),
	}

	if !opts.Watch {
		cfg, exists, err := doc.Load(ctx)
		if err != nil {
			orch.Close()
			return nil, err
		}
		orch.ApplyConfig(configstore.Snapshot{Config: cfg, Exists: exists})
		close(sess.done)
		return sess, nil
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	snapshots, stop, err := doc.Subscribe(watchCtx)
	if err != nil {
		cancel()
		orch.Close()
		return nil, err
	}

	// Apply the first snapshot synchronously so the session starts with
	// whatever configuration already exists.
	select {
	case snap, ok := <-snapshots:
		if ok {
			orch.ApplyConfig(snap)
		}
	case <-ctx.Done():
		stop()
		cancel()
		orch.Close()
		return nil, ctx.Err()
	}

	sess.cancel = cancel
	sess.stop = stop
	go func() {
		defer close(sess.done)
		orch.WatchConfig(watchCtx, snapshots)
	}()

	logger.Info().Str("document", doc.Path()).Msg("Session started")
	return sess, nil
}

// Close stops the configuration subscription and pending timers.
func (s *Session) Close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.stop != nil {
			s.stop()
		}
		<-s.done
		s.Orchestrator.Close()
	})
}
