// Package server exposes the summary pipeline over HTTP.
//
// Routes:
//
//	POST /v1/{kind}        run a summary (kind: states, charmap, transitions)
//	GET  /v1/runs          list archived runs, newest first
//	GET  /v1/runs/{id}     one archived run
//	GET  /healthz          liveness
//	GET  /version          build information
//	GET  /metrics          Prometheus metrics
//
// Summary requests carry [pipeline.Options] as JSON with the summary tree
// and traces inline. A "format" query parameter returns that single
// artifact as the raw response body instead of the JSON envelope.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/ancsummary/pkg/observability"
	"github.com/matzehuels/ancsummary/pkg/pipeline"
)

// DefaultMaxBodyBytes limits the size of a summary request.
const DefaultMaxBodyBytes = 256 << 20

// Server handles HTTP requests with a shared pipeline runner.
type Server struct {
	Runner       *pipeline.Runner
	Logger       *log.Logger
	Metrics      *Metrics
	MaxBodyBytes int64
}

// New creates a server. A nil metrics disables the /metrics route.
func New(runner *pipeline.Runner, logger *log.Logger, metrics *Metrics) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		Runner:       runner,
		Logger:       logger,
		Metrics:      metrics,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(s.instrument)

		r.Get("/healthz", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Post("/v1/{kind}", s.handleSummarize)
		r.Get("/v1/runs", s.handleListRuns)
		r.Get("/v1/runs/{id}", s.handleGetRun)
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}
	return r
}

// instrument logs each request and reports it to the HTTP hooks. It runs
// inside the routed group so the route pattern is known.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		route := routePattern(r)
		hooks.OnRequest(r.Context(), r.Method, route)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		dur := time.Since(start)
		hooks.OnResponse(r.Context(), r.Method, route, status, dur)
		s.Logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", dur,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully, giving in-flight requests up to grace to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.Logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
