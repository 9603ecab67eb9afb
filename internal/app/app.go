package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cfn-softbio/scibot-web/internal/chat"
	"github.com/cfn-softbio/scibot-web/internal/config"
	"github.com/cfn-softbio/scibot-web/internal/metrics"
	"github.com/cfn-softbio/scibot-web/internal/responder"
	"github.com/cfn-softbio/scibot-web/internal/store"
	"github.com/cfn-softbio/scibot-web/internal/store/sqlite"
	transporthttp "github.com/cfn-softbio/scibot-web/internal/transport/http"
)

// App wires together storage, the relay service and the HTTP transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	service         *chat.Service
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	// Initialize database store
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	resp, err := responder.New(cfg.Responder, cfg.DatabasePath, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init responder: %w", err)
	}

	logger.Info().Str("mode", cfg.Responder.Mode).Dur("timeout", cfg.Responder.Timeout).Msg("responder configured")

	m := metrics.New()
	svc := chat.NewService(st, resp, chat.Config{
		BotName:          cfg.BotName,
		HistoryLimit:     cfg.HistoryLimit,
		ResponderTimeout: cfg.Responder.Timeout,
		SerializeThreads: cfg.Relay.SerializeThreads,
	}, m, logger)

	return &App{
		server:          transporthttp.NewServer(svc, m, cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		service:         svc,
		log:             logger,
	}, nil
}

// Service exposes the relay service for one-shot commands.
func (a *App) Service() *chat.Service {
	return a.service
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.Close()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.Close()
			return err
		}

		a.Close()
		return <-serverErr
	}
}

// Close releases the database.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
		a.store = nil
	}
}
