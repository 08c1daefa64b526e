// Package server exposes scanning, dispatch, settings and tracking over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/s0up4200/torrentsnag/metrics"
	"github.com/s0up4200/torrentsnag/orchestrator"
	"github.com/s0up4200/torrentsnag/session"
	"github.com/s0up4200/torrentsnag/settings"
	"github.com/s0up4200/torrentsnag/tracker"
)

// Dependencies are the services the API is built on. Metrics is optional.
type Dependencies struct {
	Settings       *settings.Service
	Tracker        *tracker.Tracker
	Sessions       *session.Manager
	Orchestrator   *orchestrator.Orchestrator
	Metrics        *metrics.Manager
	AllowedOrigins []string
	Version        string
	Logger         zerolog.Logger
}

type Server struct {
	server *http.Server
	deps   *Dependencies
	logger zerolog.Logger
}

func NewServer(deps *Dependencies) *Server {
	return &Server{
		server: &http.Server{
			ReadHeaderTimeout: time.Second * 15,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       180 * time.Second,
		},
		deps:   deps,
		logger: deps.Logger.With().Str("module", "api").Logger(),
	}
}

// ListenAndServe serves the API on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.server.Addr = addr
	s.server.Handler = s.Handler()

	s.logger.Info().Str("addr", addr).Msg("Starting API server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler builds the router.
func (s *Server) Handler() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// browser extensions call from their own origin
	corsMiddleware := cors.New(cors.Options{
		AllowedMethods:  []string{"HEAD", "OPTIONS", "GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:  []string{"Accept", "Content-Type"},
		AllowOriginFunc: s.allowOrigin,
		MaxAge:          300,
	})
	r.Use(corsMiddleware.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.deps.Version})
	})
	if s.deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(requestLogger(s.logger))

		r.Route("/contexts", func(r chi.Router) {
			r.Get("/", s.listContexts)
			r.Route("/{contextID}", func(r chi.Router) {
				r.Delete("/", s.closeContext)
				r.Post("/navigate", s.navigate)
				r.Post("/links", s.links)
				r.Get("/candidates", s.candidates)
				r.Delete("/candidates", s.clearCandidates)
				r.Delete("/candidates/remove", s.removeCandidate)
				r.Post("/dispatch", s.dispatch)
				r.Post("/send-all", s.sendAll)
			})
		})

		r.Route("/handlers", func(r chi.Router) {
			r.Get("/", s.listHandlers)
			r.Put("/selected", s.selectHandler)
			r.Put("/{type}", s.updateHandler)
			r.Post("/{type}/test", s.testHandler)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.getSettings)
			r.Get("/export", s.exportSettings)
			r.Post("/import", s.importSettings)
		})

		r.Route("/tracking", func(r chi.Router) {
			r.Get("/", s.trackingStats)
			r.Post("/compact", s.compactTracking)
			r.Delete("/", s.clearTracking)
		})
	})

	return r
}

func (s *Server) allowOrigin(origin string) bool {
	if len(s.deps.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.deps.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
