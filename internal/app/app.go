package app

import (
	"context"
	"crypto/rand"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/parley-chat/parley-server/internal/auth"
	"github.com/parley-chat/parley-server/internal/config"
	"github.com/parley-chat/parley-server/internal/core"
	"github.com/parley-chat/parley-server/internal/log"
	"github.com/parley-chat/parley-server/internal/metrics"
	"github.com/parley-chat/parley-server/internal/store"
	"github.com/parley-chat/parley-server/internal/store/sqlite"
	transporthttp "github.com/parley-chat/parley-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("dsn", cfg.DatabaseDSN).Msg("session store initialized")

	digest := cfg.AdminPasswordHash
	if digest == "" {
		if cfg.AdminPassword == "" {
			st.Close()
			return nil, fmt.Errorf("admin password or password hash must be configured")
		}
		digest, err = auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
	}
	if cfg.AdminPassword == config.Default().AdminPassword && cfg.AdminPasswordHash == "" {
		logger.Warn().Msg("admin password is the built-in default, override it for anything public")
	}

	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			st.Close()
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		logger.Warn().Msg("token secret not configured, resume tokens will not survive a restart")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	hub := core.NewHub(core.Options{
		AdminName:         cfg.AdminName,
		AdminPasswordHash: digest,
		Tokens: &auth.TokenConfig{
			Secret: secret,
			Issuer: "parley",
			TTL:    cfg.TokenTTL,
		},
		Store:   st,
		Logger:  log.Component(logger, "core"),
		Metrics: m,
	})

	server := transporthttp.NewServer(hub, cfg, registry, m, log.Component(logger, "http"))

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the store and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
