// Package api wires the HTTP routes and middleware of the embed fixer server.
package api

import (
	"net/http"

	apperrors "github.com/embedfixer/embedfixer/internal/errors"
	"github.com/embedfixer/embedfixer/internal/fixer"
	"github.com/embedfixer/embedfixer/internal/health"
	"github.com/embedfixer/embedfixer/internal/logger"
	"github.com/embedfixer/embedfixer/internal/metrics"
	"github.com/embedfixer/embedfixer/internal/middleware"
	"github.com/embedfixer/embedfixer/internal/ratelimit"
	"github.com/embedfixer/embedfixer/internal/websocket"
)

// Deps are the components the router serves
type Deps struct {
	Fixer          *fixer.Fixer
	Health         *health.Handler
	Metrics        *metrics.Metrics
	WebSocket      *websocket.Handler
	Limiter        *ratelimit.Limiter // nil disables rate limiting
	Logger         *logger.Logger
	AllowedOrigins []string
}

// Router serves the API behind the middleware chain
type Router struct {
	mux      *http.ServeMux
	handlers *Handlers
	deps     Deps
	handler  http.Handler
}

// NewRouter creates the router and its middleware chain
func NewRouter(deps Deps) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		handlers: NewHandlers(deps.Fixer),
		deps:     deps,
	}
	r.setupRoutes()

	r.handler = middleware.Chain(r.mux,
		apperrors.RequestIDMiddleware,
		logger.RecoveryMiddleware(deps.Logger),
		logger.LoggingMiddleware(deps.Logger),
		metrics.Middleware(deps.Metrics),
		middleware.Timing(deps.Logger),
		middleware.CORS(deps.AllowedOrigins),
	)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	// Probes and scrapes are never limited or compressed
	r.mux.HandleFunc("GET /health", r.deps.Health.LivenessHandler)
	r.mux.HandleFunc("GET /health/ready", r.deps.Health.ReadinessHandler)
	r.mux.HandleFunc("GET /metrics", r.deps.Metrics.Handler())

	r.mux.Handle("POST /api/v1/recognize", r.api(r.handlers.Recognize))
	r.mux.Handle("GET /api/v1/recognize", r.api(r.handlers.RecognizeQuery))
	r.mux.Handle("GET /api/v1/platforms", r.api(r.handlers.Platforms))
	r.mux.Handle("POST /api/v1/report", r.api(r.handlers.Report))
	r.mux.Handle("GET /api/v1/ws/recognize", r.limited(http.HandlerFunc(r.deps.WebSocket.ServeWS)))

	r.mux.Handle("/", apperrors.HandleFunc(func(w http.ResponseWriter, req *http.Request) error {
		return apperrors.NotFound("no such endpoint")
	}))
}

// api wraps an error-returning handler with the rate limit and gzip
func (r *Router) api(h apperrors.Handler) http.Handler {
	return r.limited(middleware.Gzip(apperrors.HandleFunc(r.logErrors(h))))
}

// logErrors logs what h returns: rejected input at debug, failures at error
func (r *Router) logErrors(h apperrors.Handler) apperrors.Handler {
	return func(w http.ResponseWriter, req *http.Request) error {
		err := h(w, req)
		switch {
		case err == nil:
		case apperrors.IsClientError(err):
			r.deps.Logger.Debug(req.Context(), "request rejected", map[string]interface{}{
				"path":  req.URL.Path,
				"error": err.Error(),
			})
		case apperrors.IsServerError(err):
			r.deps.Logger.Error(req.Context(), "request failed", err, map[string]interface{}{
				"path": req.URL.Path,
			})
		default:
			r.deps.Logger.Error(req.Context(), "request failed with unexpected error", err, map[string]interface{}{
				"path": req.URL.Path,
			})
		}
		return err
	}
}

func (r *Router) limited(h http.Handler) http.Handler {
	if r.deps.Limiter == nil {
		return h
	}
	return ratelimit.Middleware(r.deps.Limiter, r.deps.Logger)(h)
}
