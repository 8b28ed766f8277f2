// Package server exposes the savekeep service as a local HTTP JSON API.
//
// Routes live under /api and mirror the backend contract. Failures are
// reported as
//
//	{"error": {"code": "SnapshotNotFound", "message": "..."}}
//
// with the HTTP status derived from the error kind.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/thoreinstein/savekeep/internal/service"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Server routes API requests to a service.
type Server struct {
	svc    *service.Service
	logger *slog.Logger
	router *mux.Router
	hosts  []string
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedHosts accepts hosts in the Host header besides the loopback
// names.
func WithAllowedHosts(hosts ...string) Option {
	return func(s *Server) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.Trim(h, "[]")); h != "" {
				s.hosts = append(s.hosts, h)
			}
		}
	}
}

// New builds the API handler over svc.
func New(svc *service.Service, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{svc: svc, logger: logger, router: mux.NewRouter()}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(securityHeaders, s.logRequests, s.guardOrigin)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNoRoute, "no such route")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeNoRoute, "method not allowed")
	})

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/store", s.handleStore).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)

	api.HandleFunc("/entries", s.handleListEntries).Methods(http.MethodGet)
	api.HandleFunc("/entries", s.handleAddEntry).Methods(http.MethodPost)
	api.HandleFunc("/entries/{name}", s.handleGetEntry).Methods(http.MethodGet)
	api.HandleFunc("/entries/{name}", s.handleRemoveEntry).Methods(http.MethodDelete)

	api.HandleFunc("/entries/{name}/files", s.handleListFiles).Methods(http.MethodGet)
	api.HandleFunc("/entries/{name}/files", s.handleAddFiles).Methods(http.MethodPost)
	api.HandleFunc("/entries/{name}/files", s.handleRemoveFile).Methods(http.MethodDelete)

	api.HandleFunc("/entries/{name}/snapshots", s.handleListSnapshots).Methods(http.MethodGet)
	api.HandleFunc("/entries/{name}/snapshots", s.handleBackup).Methods(http.MethodPost)
	api.HandleFunc("/entries/{name}/prune", s.handlePrune).Methods(http.MethodPost)
	api.HandleFunc("/entries/{name}/snapshots/{id}", s.handleGetSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/entries/{name}/snapshots/{id}", s.handleRenameSnapshot).Methods(http.MethodPatch)
	api.HandleFunc("/entries/{name}/snapshots/{id}", s.handleRemoveSnapshot).Methods(http.MethodDelete)
	api.HandleFunc("/entries/{name}/snapshots/{id}/restore", s.handleRestore).Methods(http.MethodPost)
	api.HandleFunc("/entries/{name}/snapshots/{id}/verify", s.handleVerify).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// guardOrigin refuses requests a page on another origin could make: a
// Host that is not a known name of this server, and state-changing
// requests whose Origin is some other site.
func (s *Server) guardOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.allowedHost(r.Host) {
			s.logger.Warn("refused request for unknown host", "host", r.Host, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, codeForbidden, "host "+r.Host+" is not allowed")
			return
		}
		if mutating(r.Method) && !sameOrigin(r) {
			s.logger.Warn("refused cross-origin request", "origin", r.Header.Get("Origin"), "method", r.Method, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, codeForbidden, "cross-origin requests are not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	return slices.Contains(s.hosts, host)
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// sameOrigin reports whether a request carries no foreign Origin. Clients
// that send no Origin at all, like curl, pass.
func sameOrigin(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		return false
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// Run serves handler on addr until ctx is done, then shuts down
// gracefully. The listener address is logged once bound.
func Run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("savekeep API listening", "addr", "http://"+ln.Addr().String()+"/api")
	if host, _, err := net.SplitHostPort(ln.Addr().String()); err == nil && !net.ParseIP(host).IsLoopback() {
		logger.Warn("API is reachable from the network; it has no authentication", "addr", ln.Addr().String())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
