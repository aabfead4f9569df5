// Package server exposes the orchestrator over HTTP: dispatch and explain
// operations, backend inspection, health, Prometheus metrics, and the API
// docs. Gateway middleware (CORS, rate limiting, OpenAPI validation) wraps
// every route.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-dispatch/internal/metrics"
	"github.com/tributary-ai/llm-dispatch/internal/middleware"
	"github.com/tributary-ai/llm-dispatch/internal/orchestrator"
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

// Config holds the HTTP listener and gateway middleware settings.
type Config struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`

	RateLimit  middleware.RateLimitConfig  `yaml:"rate_limit"`
	CORS       middleware.CORSConfig       `yaml:"cors"`
	Validation middleware.ValidationConfig `yaml:"validation"`
}

// Server is the HTTP gateway in front of one orchestrator.
type Server struct {
	orch       *orchestrator.Orchestrator
	httpServer *http.Server
	logger     *logrus.Logger
	config     *Config

	rateLimiter *middleware.RateLimiter
	validator   *middleware.Validator
}

// dispatchRequest is the JSON body accepted by dispatch and explain.
type dispatchRequest struct {
	Prompt   string            `json:"prompt"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// New assembles the server and its middleware.
func New(orch *orchestrator.Orchestrator, config *Config, logger *logrus.Logger) (*Server, error) {
	validator, err := middleware.NewValidator(config.Validation, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize request validation: %w", err)
	}

	return &Server{
		orch:        orch,
		logger:      logger,
		config:      config,
		rateLimiter: middleware.NewRateLimiter(config.RateLimit, logger),
		validator:   validator,
	}, nil
}

// Start blocks serving HTTP until Stop is called or the listener fails.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:           ":" + s.config.Port,
		Handler:        s.Routes(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.logger.WithField("port", s.config.Port).Info("Starting llm-dispatch gateway")
	return s.httpServer.ListenAndServe()
}

// Stop drains in-flight requests and stops the middleware.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping llm-dispatch gateway")
	s.rateLimiter.Stop()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Routes builds the full handler chain. Exported so tests can drive the
// gateway through httptest without a listener.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(middleware.CORS(s.config.CORS))
	r.Use(s.rateLimiter.Middleware)
	r.Use(s.contentTypeMiddleware)
	r.Use(s.validator.Middleware)

	// OPTIONS is listed so preflight requests match and reach the CORS
	// middleware instead of falling through to a 405.
	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/dispatch", s.handleDispatch).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/decisions/explain", s.handleExplain).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/backends", s.handleListBackends).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/backends/{name}", s.handleGetBackend).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.setupDocsRoutes(r)

	return r
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, routeTemplate(r), wrapped.statusCode, duration)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": duration.Milliseconds(),
			"user_agent":  r.UserAgent(),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
				s.writeError(w, http.StatusUnsupportedMediaType, "invalid_request", "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// routeTemplate returns the matched mux pattern so metrics keep a bounded
// label set regardless of path parameter values.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// Handlers

// handleDispatch routes the prompt and invokes the chosen backend's adapter.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "prompt must not be empty")
		return
	}

	resp, err := s.orch.DispatchRequest(r.Context(), types.Request{
		PromptText: req.Prompt,
		Metadata:   req.Metadata,
	})
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleExplain returns the routing decision without invoking any adapter.
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "prompt must not be empty")
		return
	}

	decision, err := s.orch.Explain(types.Request{
		PromptText: req.Prompt,
		Metadata:   req.Metadata,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, decision)
}

// handleListBackends lists the registered backends in registration order.
func (s *Server) handleListBackends(w http.ResponseWriter, r *http.Request) {
	backends := s.orch.Backends()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"backends": backends,
		"count":    len(backends),
	})
}

// handleGetBackend returns one backend's registration.
func (s *Server) handleGetBackend(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	backend, ok := s.orch.Backend(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("Backend %s not found", name))
		return
	}

	s.writeJSON(w, http.StatusOK, backend)
}

// handleHealth reports liveness plus the fixed routing mode.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	mode := types.RoutingModePolicy
	if s.orch.UseFDE() {
		mode = types.RoutingModeFDE
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"routing_mode": mode,
		"backends":     len(s.orch.Backends()),
		"timestamp":    time.Now().Unix(),
	})
}

// Helpers

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeDispatchError maps core error types onto HTTP statuses.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	var (
		noRoute    *types.NoRouteError
		noBackends *types.NoBackendsError
		adapterErr *types.AdapterError
		confErr    *types.ConfigurationError
	)

	switch {
	case errors.As(err, &noRoute):
		s.writeError(w, http.StatusServiceUnavailable, "no_route", err.Error())
	case errors.As(err, &noBackends):
		s.writeError(w, http.StatusServiceUnavailable, "no_backends", err.Error())
	case errors.As(err, &adapterErr):
		s.writeError(w, http.StatusBadGateway, "adapter_error", err.Error())
	case errors.As(err, &confErr):
		s.writeError(w, http.StatusBadRequest, "configuration_error", err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    errType,
			"code":    statusCode,
		},
		"timestamp": time.Now().Unix(),
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
