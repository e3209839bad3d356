// Package server provides the status and control HTTP API of kbmirror.
//
// The API exposes read access to the mirror, the duplicate report and the
// deletion plan, and lets a client trigger a sync. Every route goes through
// the same client as the CLI, so requests never touch the mirror
// concurrently with the watcher or the auto-sync loop.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/kbmirror"
	"github.com/agentstation/kbmirror/internal/server/cache"
	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/documents"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
	"github.com/agentstation/kbmirror/pkg/mirror"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	km        kbmirror.Client
	cache     *cache.Cache
	logger    *zerolog.Logger
	config    Config
	startTime time.Time
}

// New creates a new server instance with the given configuration.
func New(km kbmirror.Client, cfg Config) (*Server, error) {
	if km == nil {
		return nil, errors.NewValidationError("client", nil, "kbmirror client is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, errors.NewValidationError("port", cfg.Port, "must be between 0 and 65535")
	}
	if cfg.AuthEnabled && cfg.APIKey == "" {
		return nil, errors.NewConfigError("server", "authentication enabled without an API key", nil)
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = DefaultConfig().PathPrefix
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = DefaultConfig().AuthHeader
	}

	logger := logging.Default().With().Str("component", "server").Logger()

	server := &Server{
		km:        km,
		logger:    &logger,
		config:    cfg,
		startTime: time.Now(),
	}

	if cfg.CacheTTL > 0 {
		server.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
		server.connectHooks()
	}

	return server, nil
}

// connectHooks invalidates cached results whenever the mirror changes.
func (s *Server) connectHooks() {
	s.km.OnDocumentAdded(func(record documents.Record) {
		s.cache.Invalidate(record.KBID)
	})
	s.km.OnDocumentUpdated(func(_, updated documents.Record) {
		s.cache.Invalidate(updated.KBID)
	})
	s.km.OnDocumentRemoved(func(record documents.Record) {
		s.cache.Invalidate(record.KBID)
	})
	s.km.OnCacheReset(func(mirror.ResetEvent) {
		s.cache.Clear()
	})
	s.logger.Debug().Dur("ttl", s.config.CacheTTL).Msg("Report cache connected to mirror hooks")
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Serve listens on the configured address until ctx is done, then shuts
// the listener down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return errors.WrapIO("listen", s.config.Addr(), err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("addr", ln.Addr().String()).
			Str("prefix", s.config.PathPrefix).
			Bool("auth", s.config.AuthEnabled).
			Float64("rate_limit", s.config.RateLimit).
			Msg("Server starting")

		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down server")

	// The parent context is already done; shutdown gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.WrapResource("shutdown", "server", ln.Addr().String(), err)
	}

	s.logger.Info().Msg("Server stopped gracefully")
	return nil
}
