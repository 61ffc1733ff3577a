// Package main provides the image analyzer API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spherical/image-analyzer/cmd/image-analyzer-api/middleware"
	"github.com/spherical/image-analyzer/internal/config"
	"github.com/spherical/image-analyzer/internal/observability"
	"github.com/spherical/image-analyzer/internal/session"
)

func main() {
	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Str("model", cfg.Gemini.Model).
		Msg("Starting image analyzer API")

	services, err := session.NewServices(context.Background(), cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize services")
		os.Exit(1)
	}
	sessions := session.NewManager(services)

	appCfg := DefaultAppConfig()
	if cfg.Server.MaxUploadBytes > 0 {
		appCfg.MaxUploadBytes = cfg.Server.MaxUploadBytes
	}
	appCfg.Identity = middleware.IdentityConfig{
		TrustUserHeader: cfg.Identity.TrustUserHeader,
		TokenSecret:     cfg.Identity.TokenSecret,
	}
	if appCfg.Identity.TrustUserHeader {
		logger.Warn().Str("header", middleware.UserIDHeader).Msg("Trusting caller-supplied user header")
	}

	router := NewRouter(logger, sessions, appCfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt or error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	sessions.CloseAll()
	if err := services.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close configuration store")
	}

	logger.Info().Msg("Server stopped")
}
