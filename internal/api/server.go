// Package api provides the read-side HTTP API over the scanned case data:
// lookups by application number, subscription management, and live crawl
// status.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/case-scanner/internal/crawler"
	"github.com/case-scanner/internal/logging"
	"github.com/case-scanner/internal/models"
)

// ApplicationReader is the read slice of the application repository.
type ApplicationReader interface {
	GetByNumber(ctx context.Context, applicationNumber string) (*models.Application, error)
	GetEvents(ctx context.Context, applicationID int64) ([]models.Event, error)
}

// SubscriptionManager creates and deactivates case subscriptions.
type SubscriptionManager interface {
	Create(ctx context.Context, applicationNumber string) (*models.Subscription, error)
	Deactivate(ctx context.Context, applicationNumber string) error
}

// StatsProvider exposes the counters of an in-flight crawl run.
type StatsProvider interface {
	Snapshot() crawler.StatsSnapshot
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server represents the HTTP API server.
type Server struct {
	router        *mux.Router
	httpServer    *http.Server
	applications  ApplicationReader
	subscriptions SubscriptionManager
	stats         StatsProvider
	config        *ServerConfig
}

// NewServer creates a new API server instance. The stats provider is
// optional: binaries that do not crawl pass nil and the status endpoint
// reports that no run is active.
func NewServer(
	config *ServerConfig,
	applications ApplicationReader,
	subscriptions SubscriptionManager,
	stats StatsProvider,
) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		applications:  applications,
		subscriptions: subscriptions,
		stats:         stats,
		config:        config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes. Application numbers carry an
// embedded slash ("814/21"), so lookups take number and year as separate
// path segments.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Application endpoints
	api.HandleFunc("/applications/{number:[0-9]+}/{year:[0-9]+}", s.handleGetApplication).Methods("GET")
	api.HandleFunc("/applications/{number:[0-9]+}/{year:[0-9]+}/events", s.handleGetEvents).Methods("GET")

	// Subscription endpoints
	api.HandleFunc("/subscriptions", s.handleCreateSubscription).Methods("POST")
	api.HandleFunc("/subscriptions/{number:[0-9]+}/{year:[0-9]+}", s.handleDeactivateSubscription).Methods("DELETE")

	// Crawl status endpoint
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "case-scanner",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
