// Package server provides HTTP server management and lifecycle handling for
// the interactions API. It includes server setup, middleware configuration,
// route management, and graceful shutdown with proper error handling and
// logging.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rxguard/interactions-api/config"
	"github.com/rxguard/interactions-api/handlers"
	"github.com/rxguard/interactions-api/health"
	"github.com/rxguard/interactions-api/interfaces"
	"github.com/rxguard/interactions-api/ledger"
	"github.com/rxguard/interactions-api/logging"
	"github.com/rxguard/interactions-api/metrics"
	"github.com/rxguard/interactions-api/validation"
)

// Server represents the HTTP server
type Server struct {
	server    *http.Server
	router    chi.Router
	dataStore interfaces.DataStore
	sink      ledger.AuditSink
	config    *config.Config
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, dataStore interfaces.DataStore, sink ledger.AuditSink) *Server {
	router := chi.NewRouter()

	server := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:    router,
		dataStore: dataStore,
		sink:      sink,
		config:    cfg,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.LoggingMiddleware(logging.DefaultLoggingService.Logger))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(RateLimitHandler)
	s.router.Use(metrics.Metrics)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	validator := validation.NewValidator()
	healthChecker := health.NewChecker(s.dataStore, s.config.ReloadTimes())

	s.router.Post("/check", handlers.CheckPrescription(s.dataStore, validator))
	s.router.Post("/overrides", handlers.RecordOverride(s.sink, validator))
	s.router.Get("/drugs/{name}", handlers.FindDrug(s.dataStore, validator))
	s.router.Get("/classes/{tag}", handlers.FindClass(s.dataStore, validator))
	s.router.Get("/health", handlers.HealthCheck(s.dataStore, healthChecker))
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start starts the server
func (s *Server) Start() error {
	// Start profiling server if in development mode
	if s.config.Env == "dev" {
		s.startProfilingServer()
	}

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	// Wait a bit for any ongoing requests to complete
	logging.Info("Waiting for ongoing requests to complete...")
	time.Sleep(2 * time.Second)

	logging.Info("Server shutdown complete")
	return nil
}

// startProfilingServer starts the pprof profiling server in development mode
func (s *Server) startProfilingServer() {
	go func() {
		fmt.Println("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			fmt.Println("Profiling server failed: ", err)
		}
	}()
}
