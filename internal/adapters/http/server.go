// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Tqy43/ZSQL-gis/internal/application"
	"github.com/Tqy43/ZSQL-gis/internal/config"
	"github.com/Tqy43/ZSQL-gis/internal/ports/input"
)

// SyncTrigger runs an on-demand object storage sync.
type SyncTrigger interface {
	TriggerSync(ctx context.Context) (application.SyncResult, error)
}

// LayerUploader exports a layer to object storage.
type LayerUploader interface {
	Upload(ctx context.Context, name string) (string, error)
}

// Services are the application ports the handlers drive. Sync and Uploader
// may be nil.
type Services struct {
	Layers   input.LayerCatalog
	Importer input.ImportService
	Store    input.StoreGateway
	Health   input.HealthChecker
	Sync     SyncTrigger
	Uploader LayerUploader
}

// Metrics mounts a metrics endpoint and its middleware. Both may be nil.
type Metrics struct {
	Path       string
	Handler    http.Handler
	Middleware mux.MiddlewareFunc
}

// Server wraps the HTTP server with application handlers.
type Server struct {
	server   *http.Server
	router   *mux.Router
	services Services
	metrics  Metrics
	logger   *slog.Logger
	config   config.ServerConfig
}

// NewServer creates a new HTTP server.
func NewServer(cfg config.ServerConfig, services Services, metrics Metrics, logger *slog.Logger) *Server {
	s := &Server{
		services: services,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Add middleware
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.metrics.Middleware != nil {
		r.Use(s.metrics.Middleware)
	}

	// Add CORS middleware if configured
	if s.config.CORS.Enabled() {
		r.Use(s.corsMiddleware)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Layer store
	api.HandleFunc("/layers", s.handleListLayers).Methods(http.MethodGet)
	api.HandleFunc("/layers", s.handleImport).Methods(http.MethodPost)
	api.HandleFunc("/layers", s.handleClearLayers).Methods(http.MethodDelete)
	api.HandleFunc("/layers/{name}", s.handleGetLayer).Methods(http.MethodGet)
	api.HandleFunc("/layers/{name}", s.handleRemoveLayer).Methods(http.MethodDelete)
	api.HandleFunc("/layers/{name}/visibility", s.handleSetVisibility).Methods(http.MethodPut)
	api.HandleFunc("/layers/{name}/export", s.handleExportLayer).Methods(http.MethodGet)
	api.HandleFunc("/query", s.handleQuery).Methods(http.MethodGet)
	api.HandleFunc("/extent", s.handleExtent).Methods(http.MethodGet)
	api.HandleFunc("/render", s.handleRender).Methods(http.MethodGet)

	// Project files
	api.HandleFunc("/project", s.handleSaveProject).Methods(http.MethodGet)
	api.HandleFunc("/project", s.handleOpenProject).Methods(http.MethodPut)

	// Spatial store
	api.HandleFunc("/store", s.handleStoreSummary).Methods(http.MethodGet)
	api.HandleFunc("/store/layers/{name}", s.handlePushLayer).Methods(http.MethodPost)
	api.HandleFunc("/store/{kind}", s.handlePull).Methods(http.MethodGet)

	// Object storage endpoints (only if storage is configured)
	if s.services.Sync != nil {
		api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	}
	if s.services.Uploader != nil {
		api.HandleFunc("/layers/{name}/export", s.handleUploadLayer).Methods(http.MethodPost)
	}

	if s.metrics.Handler != nil {
		path := s.metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, s.metrics.Handler).Methods(http.MethodGet)
	}

	// OpenAPI spec and Swagger UI
	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.handleSwaggerUI).Methods(http.MethodGet)

	// Map viewer (if enabled)
	if s.config.FrontendEnabled {
		r.HandleFunc("/", s.handleFrontend).Methods(http.MethodGet)
	}

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// StartTLS starts the HTTPS server with certificates from tlsConfig.
func (s *Server) StartTLS(tlsConfig *tls.Config) error {
	s.logger.Info("starting HTTPS server", "address", s.config.Address())
	s.server.TLSConfig = tlsConfig
	return s.server.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware recovers from panics.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
