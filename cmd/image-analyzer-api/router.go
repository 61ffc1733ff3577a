// Package main provides the API router setup.
package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/image-analyzer/cmd/image-analyzer-api/handlers"
	"github.com/spherical/image-analyzer/cmd/image-analyzer-api/middleware"
	"github.com/spherical/image-analyzer/internal/observability"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, sessions handlers.SessionStore, cfg *AppConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"image-analyzer"}`))
	})

	sessionHandler := handlers.NewSessionHandler(logger, sessions, cfg.MaxUploadBytes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.Identity))

		r.Post("/sessions", sessionHandler.Create)
		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Delete("/", sessionHandler.Delete)

			r.Post("/analyze", sessionHandler.Analyze)
			r.Post("/summarize", sessionHandler.Summarize)
			r.Post("/email-draft", sessionHandler.DraftEmail)

			r.Route("/config", func(r chi.Router) {
				r.Get("/", sessionHandler.GetConfig)
				r.Put("/", sessionHandler.PutConfig)
				r.Post("/open", sessionHandler.OpenConfig)
				r.Post("/close", sessionHandler.CloseConfig)
			})
		})
	})

	return r
}

// AppConfig holds application configuration.
type AppConfig struct {
	// RequestTimeout must leave room for the vision retry schedule.
	RequestTimeout time.Duration
	MaxUploadBytes int64
	// Identity is the zero value by default: no header trust and bearer
	// tokens rejected.
	Identity middleware.IdentityConfig
}

// DefaultAppConfig returns default configuration values.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		RequestTimeout: 3 * time.Minute,
		MaxUploadBytes: 20 << 20,
	}
}
