// Package httpapi exposes the sanction engine over HTTP under /api/v1.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sanctioncore/internal/adapters/reports"
	"sanctioncore/internal/core"
)

// ReportLister lists archived sweep reports.
type ReportLister interface {
	List(ctx context.Context) ([]reports.Entry, error)
}

// Deps wires the router. Service is required; the rest are optional.
type Deps struct {
	Service  *core.Service
	Reports  ReportLister
	Gatherer prometheus.Gatherer
	Limiter  *RateLimiter
	Logger   *slog.Logger
}

// Handler serves the API.
type Handler struct {
	svc     *core.Service
	reports ReportLister
	logger  *slog.Logger
}

// NewRouter builds the chi router for deps.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{svc: deps.Service, reports: deps.Reports, logger: logger.With("component", "http-api")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.recoverer)
	r.Use(h.accessLog)
	if deps.Limiter != nil {
		r.Use(deps.Limiter.Middleware)
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "No such endpoint.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "The HTTP method is not supported for this endpoint.")
	})

	r.Get("/healthz", h.health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/sanctions", func(api chi.Router) {
		api.Get("/", h.list)
		api.Post("/", h.createRandom)
		api.Post("/specific", h.createSpecific)
		api.Get("/summary", h.summary)
		api.Get("/templates", h.templates)
		api.Get("/reports", h.listReports)
		api.Post("/complete-all", h.completeAll)
		api.Post("/check", h.check)
		api.Route("/{id}", func(one chi.Router) {
			one.Get("/", h.get)
			one.Delete("/", h.delete)
			one.Post("/complete", h.complete)
			one.Post("/escalate", h.escalate)
			one.Post("/expire", h.expire)
		})
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Health(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", "error", err)
		writeProblem(w, r, http.StatusServiceUnavailable, "Store unavailable.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.logger.ErrorContext(r.Context(), "panic serving request",
					"panic", rec,
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()),
				)
				writeProblem(w, r, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
