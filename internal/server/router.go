package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentstation/kbmirror/internal/metrics"
	"github.com/agentstation/kbmirror/internal/server/handlers"
	"github.com/agentstation/kbmirror/internal/server/middleware"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Request ids first so every later log line carries one.
	r.Use(middleware.Chain(
		middleware.RequestID(s.logger),
		middleware.Recovery(s.logger),
		middleware.Logger(),
	))

	if s.config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(s.config.RateLimit, s.config.Burst)
		r.Use(middleware.RateLimit(limiter))
	}

	h := handlers.New(s.km, s.cache, s.startTime)

	// Public endpoints (no auth required)
	r.Get("/healthz", h.HandleHealth)
	if s.config.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Route(s.config.PathPrefix, func(r chi.Router) {
		if s.config.AuthEnabled {
			r.Use(middleware.Auth(middleware.AuthConfig{
				APIKey:     s.config.APIKey,
				HeaderName: s.config.AuthHeader,
			}))
		}

		r.Route("/kbs/{kbID}", func(r chi.Router) {
			r.Get("/documents", h.HandleDocuments)
			r.Get("/duplicates", h.HandleDuplicates)
			r.Get("/plan", h.HandlePlan)
			r.Post("/sync", h.HandleSync)
		})
	})

	return r
}
