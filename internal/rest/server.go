// Package rest exposes declared functions and routes over HTTP. A
// function with a rest config becomes an endpoint; application routes
// render their component's markup.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lattice-lang/lattice/internal/ast"
	"github.com/lattice-lang/lattice/internal/funcrt"
	"github.com/lattice-lang/lattice/internal/health"
	"github.com/lattice-lang/lattice/internal/interp"
	"github.com/lattice-lang/lattice/pkg/logging"
	"github.com/lattice-lang/lattice/pkg/metrics"
)

// Config holds HTTP server settings.
type Config struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	Auth           AuthConfig
}

// DefaultConfig returns server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		RequestTimeout: 60 * time.Second,
	}
}

// Server serves an application's rest functions and routes.
type Server struct {
	cfg       Config
	router    chi.Router
	runtime   *funcrt.Runtime
	validator *Validator
	health    *health.Registry
	log       *slog.Logger

	srv *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger overrides the module logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithHealth registers a health registry behind /health and
// /health/ready.
func WithHealth(reg *health.Registry) Option {
	return func(s *Server) { s.health = reg }
}

// New builds the server and its base middleware stack.
func New(cfg Config, runtime *funcrt.Runtime, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}

	s := &Server{
		cfg:       cfg,
		router:    chi.NewRouter(),
		runtime:   runtime,
		validator: NewValidator(cfg.Auth),
		log:       logging.ModuleLogger("rest"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logging.RequestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(cfg.RequestTimeout))

	if s.health != nil {
		s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.health.Health(r.Context()))
		})
		s.router.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
			resp := s.health.Readiness(r.Context())
			status := http.StatusOK
			if resp.Status == health.StatusUnhealthy {
				status = http.StatusServiceUnavailable
			}
			writeJSON(w, status, resp)
		})
	} else {
		s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		})
	}
	s.router.Handle("/metrics", metrics.Handler())
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// MountApplication registers every rest-exposed function and every
// declared route. The application must already be loaded into the
// runtime.
func (s *Server) MountApplication(app *ast.Application) error {
	for _, f := range app.Functions {
		if err := s.mountFunction(f); err != nil {
			return err
		}
	}
	for _, c := range app.Components {
		for _, f := range c.Functions {
			if err := s.mountFunction(f); err != nil {
				return err
			}
		}
	}
	for _, rt := range app.Routes {
		s.router.Get(chiPath(rt.Path), s.routeHandler(rt))
		s.log.Info("route mounted", "path", rt.Path, "component", rt.Component)
	}
	return nil
}

func (s *Server) mountFunction(f *ast.Function) error {
	if f.Rest == nil {
		return nil
	}
	handler := s.functionHandler(f)
	if f.Rest.Auth == "jwt" {
		handler = s.requireAuth(f.Rest.Roles, handler)
	}
	s.router.Method(f.Rest.Method, chiPath(f.Rest.Endpoint), handler)
	s.log.Info("endpoint mounted", "method", f.Rest.Method, "endpoint", f.Rest.Endpoint, "function", f.Name)
	return nil
}

// functionHandler decodes arguments, invokes the function through the
// runtime, and writes the result envelope.
func (s *Server) functionHandler(f *ast.Function) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, err := requestArgs(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := s.runtime.CallFunction(r.Context(), f, args)
		if err != nil {
			status := http.StatusInternalServerError
			if strings.Contains(err.Error(), "required parameter") {
				status = http.StatusBadRequest
			}
			s.log.ErrorContext(r.Context(), "function call failed", "function", f.Name, "error", err)
			writeError(w, status, err.Error())
			return
		}

		status := f.Rest.Status
		if status == 0 {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]any{"result": result})
	}
}

// routeHandler renders the route's component markup. Query and path
// parameters become the component's arguments.
func (s *Server) routeHandler(rt *ast.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, err := requestArgs(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var out strings.Builder
		ctx := interp.WithOutput(r.Context(), &out)
		if _, err := s.runtime.Call(ctx, rt.Component, args); err != nil {
			s.log.ErrorContext(r.Context(), "route render failed", "path", rt.Path, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if rt.Title != "" {
			fmt.Fprintf(w, "<!doctype html><html><head><title>%s</title></head><body>", rt.Title)
			io.WriteString(w, out.String())
			io.WriteString(w, "</body></html>")
			return
		}
		io.WriteString(w, out.String())
	}
}

// requireAuth wraps a handler with bearer token validation and an
// optional role check.
func (s *Server) requireAuth(roles []string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.validator.ValidateToken(bearerToken(r))
		if err != nil {
			status := http.StatusUnauthorized
			msg := "unauthorized"
			if errors.Is(err, ErrExpiredToken) {
				msg = "token expired"
			}
			writeError(w, status, msg)
			return
		}
		if len(roles) > 0 && !hasAnyRole(user, roles) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r.WithContext(withUser(r.Context(), user)))
	}
}

func hasAnyRole(u *User, roles []string) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// requestArgs merges path parameters, query parameters, and a JSON
// body into one argument map. Body keys win over query keys, query
// keys win over path keys.
func requestArgs(r *http.Request) (map[string]any, error) {
	args := make(map[string]any)

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "*" {
				continue
			}
			args[key] = rctx.URLParams.Values[i]
		}
	}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			args[key] = values[0]
		}
	}

	if r.Body != nil && bodyExpected(r.Method) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		if len(body) > 0 {
			var decoded map[string]any
			if err := json.Unmarshal(body, &decoded); err != nil {
				return nil, fmt.Errorf("decoding request body: %w", err)
			}
			for k, v := range decoded {
				args[k] = v
			}
		}
	}
	return args, nil
}

func bodyExpected(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// chiPath converts :name path segments to chi's {name} form. Endpoints
// already written with braces pass through untouched.
func chiPath(endpoint string) string {
	if !strings.Contains(endpoint, ":") {
		return endpoint
	}
	segments := strings.Split(endpoint, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") && len(seg) > 1 {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}

// Start serves until ctx is cancelled, then drains.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("rest: server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
