// Package api exposes the HTTP interface for the conversion service.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/auth"
	"github.com/ctxthelp/ctxt-api/internal/billing"
	"github.com/ctxthelp/ctxt-api/internal/botdetect"
	"github.com/ctxthelp/ctxt-api/internal/config"
	"github.com/ctxthelp/ctxt-api/internal/convert"
	"github.com/ctxthelp/ctxt-api/internal/core"
	"github.com/ctxthelp/ctxt-api/internal/metrics"
	"github.com/ctxthelp/ctxt-api/internal/policy/ratelimit"
	"github.com/ctxthelp/ctxt-api/internal/policy/tier"
	"github.com/ctxthelp/ctxt-api/internal/stack"
)

// Deps collects the collaborators the server wires routes to.
type Deps struct {
	Pipeline    *convert.Pipeline
	Conversions core.ConversionStore
	Stacks      *stack.Service
	Limiter     *ratelimit.Limiter
	Anonymous   *ratelimit.Anonymous
	Policy      *tier.Policy
	Detector    *botdetect.Detector
	Billing     *billing.Processor
	Auth        *auth.Authenticator
	Clock       core.Clock

	// Ready reports whether downstream dependencies are reachable. Nil
	// means always ready.
	Ready func(ctx context.Context) error
}

// Server wires HTTP handlers to the domain services.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/read/{slug}", s.readConversion)

	optionalAuth := deps.Auth.Optional(s.authError)
	requiredAuth := deps.Auth.Required(s.authError)

	r.Route("/v1", func(r chi.Router) {
		r.With(optionalAuth).Post("/convert", s.convertURL)

		r.Route("/conversions", func(r chi.Router) {
			r.With(optionalAuth).Post("/", s.createConversion)
			r.With(requiredAuth).Get("/", s.listConversions)
			r.With(optionalAuth).Get("/{id}", s.getConversion)
			r.With(requiredAuth).Post("/{id}/save", s.saveConversion)
			r.With(requiredAuth).Delete("/{id}", s.deleteConversion)
		})

		r.Route("/stacks", func(r chi.Router) {
			r.With(requiredAuth).Post("/", s.createStack)
			r.With(requiredAuth).Get("/", s.listStacks)
			r.Get("/public", s.listPublicStacks)
			r.With(optionalAuth).Get("/{id}", s.getStack)
			r.With(requiredAuth).Put("/{id}", s.updateStack)
			r.With(requiredAuth).Delete("/{id}", s.deleteStack)
			r.With(optionalAuth).Post("/{id}/export", s.exportStack)
		})

		r.Get("/tiers", s.listTiers)
	})

	r.Post("/webhooks/billing", s.billingWebhook)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) authError(w http.ResponseWriter, _ *http.Request, err error) {
	s.writeError(w, err)
}
