// Package httpapi serves the read API consumed by the inbox UI and the
// admin API that edits the service registry. Reads never touch the service
// registry's matching semantics themselves; scope filtering is delegated to
// the filter engine at query time.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inboxd/inboxd/db"
	"github.com/inboxd/inboxd/logger"
	"github.com/inboxd/inboxd/pkg/metrics"
)

// CatchAllScope is the reserved service slug selecting mail attributable to
// no named service.
const CatchAllScope = "other"

// Store is the persistence surface the API reads from and administers.
// *db.Database implements it; tests substitute a fake.
type Store interface {
	ListEmailsForAddress(ctx context.Context, localPart string, domains []string, excludedSender string) ([]db.Email, error)
	ListServices(ctx context.Context) ([]db.Service, error)
	GetServiceByName(ctx context.Context, name string) (*db.Service, error)
	CreateService(ctx context.Context, name, senderFilter, subjectFilter string) (int64, error)
	UpdateServiceFilters(ctx context.Context, id int64, senderFilter, subjectFilter string) error
}

// Server represents the HTTP API server
type Server struct {
	addr           string
	apiKey         string
	allowedHosts   []string
	domains        []string
	excludedSender string
	store          Store
	server         *http.Server
}

// ServerOptions holds configuration options for the HTTP API server
type ServerOptions struct {
	Addr           string
	APIKey         string
	AllowedHosts   []string
	Domains        []string
	ExcludedSender string
}

// New creates a new HTTP API server.
func New(store Store, options ServerOptions) (*Server, error) {
	if len(options.Domains) == 0 {
		return nil, fmt.Errorf("at least one served domain is required")
	}

	return &Server{
		addr:           options.Addr,
		apiKey:         options.APIKey,
		allowedHosts:   options.AllowedHosts,
		domains:        options.Domains,
		excludedSender: options.ExcludedSender,
		store:          store,
	}, nil
}

// Start starts the HTTP API server
func Start(ctx context.Context, store Store, options ServerOptions, errChan chan error) {
	server, err := New(store, options)
	if err != nil {
		errChan <- fmt.Errorf("failed to create HTTP API server: %w", err)
		return
	}

	logger.Info("HTTP API: starting server", "addr", options.Addr)
	if err := server.start(ctx); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		errChan <- fmt.Errorf("HTTP API server failed: %w", err)
	}
}

// start initializes and starts the HTTP server
func (s *Server) start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("HTTP API: shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP API: error shutting down server", "error", err)
		}
	}()

	return s.server.ListenAndServe()
}

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.loggingMiddleware)
	router.Use(s.allowedHostsMiddleware)

	router.HandleFunc("/", s.handleRoot).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/emails/{user}", s.handleListEmails).Methods("GET")
	api.HandleFunc("/emails/{user}/service/{service}", s.handleListEmailsForService).Methods("GET")
	api.HandleFunc("/services", s.handleListServices).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.authMiddleware)
	admin.HandleFunc("/services", s.handleCreateService).Methods("POST")
	admin.HandleFunc("/services/{id}", s.handleUpdateService).Methods("PUT")

	return router
}

// Middleware functions

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method).Observe(elapsed.Seconds())
		logger.Debug("HTTP API: request",
			"method", r.Method, "path", r.URL.Path, "status", rec.status,
			"remote", r.RemoteAddr, "duration", elapsed)
	})
}

func (s *Server) allowedHostsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedHosts) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := getClientIP(r)

		allowed := false
		for _, allowedHost := range s.allowedHosts {
			if allowedHost == clientIP {
				allowed = true
				break
			}
			// CIDR blocks
			if strings.Contains(allowedHost, "/") {
				if _, cidr, err := net.ParseCIDR(allowedHost); err == nil {
					if ip := net.ParseIP(clientIP); ip != nil && cidr.Contains(ip) {
						allowed = true
						break
					}
				}
			}
		}

		if !allowed {
			s.writeError(w, http.StatusForbidden, "Host not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware guards the admin routes with a static bearer token. An
// empty configured key disables the check.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			s.writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) != 1 {
			s.writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Response helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("HTTP API: error encoding JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
