package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sisbarc/camshell/internal/api"
	"github.com/sisbarc/camshell/internal/build"
	"github.com/sisbarc/camshell/internal/devproxy"
	"github.com/sisbarc/camshell/internal/metrics"
	"github.com/sisbarc/camshell/internal/routes"
	"github.com/sisbarc/camshell/internal/telemetry"
	"github.com/sisbarc/camshell/internal/views"
)

// EventViewFetchFailed is published when a lazy view cannot be loaded.
const EventViewFetchFailed = "view.fetch_failed"

// EventPublisher allows the server to emit events without depending on a
// concrete event bus implementation.
type EventPublisher interface {
	Publish(eventType string, payload map[string]string)
}

// Config holds the server's dependencies.
type Config struct {
	Table *routes.Table
	API   *api.Server

	// NotFound is rendered with 404 for paths no route matches. Error is
	// rendered with 503 when a lazy view fails to load.
	NotFound routes.View
	Error    routes.View

	// Static holds files served under the base URL ahead of route
	// resolution. It may be nil.
	Static fs.FS

	// Proxy forwards matching paths in development. When nil, paths under
	// APIPrefix answer 404.
	Proxy     *devproxy.Proxy
	APIPrefix string

	Metrics        *metrics.Metrics
	EventPublisher EventPublisher

	// Telemetry, when set, wraps the router with OpenTelemetry HTTP
	// instrumentation.
	Telemetry *telemetry.Providers

	Port   int
	Logger *slog.Logger
}

// Server is the HTTP host for the application shell.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server
}

// New builds the router.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	s := &Server{cfg: cfg, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.GetHead)
	r.Use(s.requestLogger)
	if cfg.Proxy != nil {
		r.Use(cfg.Proxy.Middleware)
	} else {
		r.Use(s.apiNotFound)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	if cfg.API != nil {
		r.Route("/_shell", func(r chi.Router) {
			cfg.API.Mount(r)
		})
	}

	// Static files, then history-mode routes.
	r.Get("/*", s.shellHandler)

	s.handler = r
	if cfg.Telemetry != nil {
		s.handler = cfg.Telemetry.Instrument(r, "camshell")
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// requestLogger is a chi middleware that logs each incoming request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// apiNotFound answers every APIPrefix path with a JSON 404. It stands in for
// the dev proxy in production.
func (s *Server) apiNotFound(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, s.cfg.APIPrefix) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})
}

// shellHandler serves a static file when one exists under the base URL and
// otherwise mounts the view for the matching route.
func (s *Server) shellHandler(w http.ResponseWriter, r *http.Request) {
	if s.serveStatic(w, r) {
		return
	}

	route, view, err := s.cfg.Table.Resolve(r.Context(), r.URL.Path)
	switch {
	case errors.Is(err, routes.ErrNoRoute):
		s.render(w, r, http.StatusNotFound, s.cfg.NotFound, s.pageData(r, "", nil))
		return
	case err != nil:
		s.logger.Error("view fetch failed",
			slog.String("route", route.Name),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if s.cfg.EventPublisher != nil {
			s.cfg.EventPublisher.Publish(EventViewFetchFailed, map[string]string{
				"route": route.Name,
				"path":  r.URL.Path,
				"error": err.Error(),
			})
		}
		data := s.pageData(r, route.Name, err)
		data.Status = http.StatusServiceUnavailable
		s.render(w, r, http.StatusServiceUnavailable, s.cfg.Error, data)
		return
	}

	if s.render(w, r, http.StatusOK, view, s.pageData(r, route.Name, nil)) && s.cfg.Metrics != nil {
		s.cfg.Metrics.ViewMounted(route.Name)
	}
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.Static == nil {
		return false
	}
	base := s.cfg.Table.Base()
	if !strings.HasPrefix(r.URL.Path, base) {
		return false
	}
	name := strings.TrimPrefix(r.URL.Path, base)
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(s.cfg.Static, name)
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeFileFS(w, r, s.cfg.Static, name)
	return true
}

func (s *Server) pageData(r *http.Request, routeName string, err error) views.PageData {
	data := views.PageData{
		Base:      s.cfg.Table.Base(),
		APIBase:   s.cfg.APIPrefix,
		Route:     routeName,
		Path:      r.URL.Path,
		Nav:       views.Nav(s.cfg.Table, routeName),
		Version:   build.Version,
		RequestID: middleware.GetReqID(r.Context()),
	}
	if err != nil {
		data.Error = "This page could not be loaded. Please try again."
	}
	return data
}

// render executes v into a buffer first so a template error never leaves a
// half-written page. It reports whether the page was written.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, v routes.View, data views.PageData) bool {
	if v == nil {
		http.Error(w, http.StatusText(status), status)
		return false
	}
	var buf bytes.Buffer
	if err := v.Render(&buf, data); err != nil {
		s.logger.Error("render failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return false
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return true
}
