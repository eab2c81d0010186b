package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/open-hospitality/kestrel/internal/alerts"
	"github.com/open-hospitality/kestrel/internal/domain"
	"github.com/open-hospitality/kestrel/internal/engine"
	"github.com/open-hospitality/kestrel/internal/monitor"
	"github.com/open-hospitality/kestrel/internal/reporting"
	"github.com/open-hospitality/kestrel/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, mon *monitor.Monitor, generator *alerts.Generator, reporter *reporting.Reporter, ruleEngine *rules.Engine, version string) *Server {
	handler := NewHandler(repo, cache, bus, eng, mon, generator, reporter, ruleEngine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no venue required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (venue required)
	router.Route("/", func(r chi.Router) {
		r.Use(VenueMiddleware)

		// Scoring
		r.Post("/employees", handler.CreateEmployee)
		r.Get("/employees", handler.ListEmployees)
		r.Get("/employees/{employeeID}", handler.GetEmployee)

		r.Post("/evaluate", handler.Evaluate)
		r.Get("/snapshots/{employeeID}", handler.Snapshots)

		// Real-time monitor
		r.Post("/monitor/transaction", handler.MonitorTransaction)
		r.Post("/monitor/shift", handler.MonitorShift)

		// Alerts
		r.Get("/alerts", handler.ListAlerts)
		r.Post("/alerts/{id}/ack", handler.AcknowledgeAlert)

		// Reporting
		r.Get("/dashboard", handler.Dashboard)
		r.Get("/report", handler.Report)

		// Signal ingestion
		r.Post("/signals/{kind}", handler.IngestSignal)

		// Rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
