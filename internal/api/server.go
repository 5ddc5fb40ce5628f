package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/brokerage/internal/domain"
	"github.com/opensource-finance/brokerage/internal/metrics"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Repository domain.Repository
	Cache      domain.Cache
	Bus        domain.EventBus
	Metrics    *metrics.Metrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Version  string
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, svc Services, opts Options) *Server {
	handler := NewHandler(opts.Repository, opts.Cache, opts.Bus, svc, opts.Version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)                  // CORS for browser clients
	router.Use(RecoverMiddleware)               // Recover from panics
	router.Use(TracingMiddleware)               // OpenTelemetry tracing
	router.Use(LoggingMiddleware)               // Request logging
	router.Use(MetricsMiddleware(opts.Metrics)) // Prometheus HTTP metrics
	router.Use(middleware.RealIP)               // Extract real IP
	router.Use(middleware.Compress(5))          // Gzip compression

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	if opts.Gatherer != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// Rule management
	router.Route("/rules", func(r chi.Router) {
		r.Get("/", handler.GetAllRules)
		r.Post("/health", handler.UpsertHealthRules)
		r.Post("/life", handler.UpsertLifeRules)
		r.Post("/car", handler.UpsertCarRule)
		r.Put("/car/{id}", handler.UpsertCarRule)
		r.Post("/health/delete", handler.DeleteHealthRules)
		r.Post("/life/delete", handler.DeleteLifeRules)
		r.Post("/car/delete", handler.DeleteCarRules)
		r.Post("/car/groups/delete", handler.DeleteCarRuleGroupEntries)
	})

	// Catalog
	router.Post("/plans", handler.SavePlan)
	router.Get("/plans/{id}", handler.GetPlan)
	router.Route("/companies", func(r chi.Router) {
		r.Post("/", handler.SaveCompany)
		r.Get("/{id}", handler.GetCompany)
		r.Put("/{id}/plans/{planId}/features", handler.SetCompanyFeatures)
	})

	// Quotes
	router.Route("/offers", func(r chi.Router) {
		r.Post("/health", handler.HealthOffers)
		r.Post("/life", handler.LifeOffers)
		r.Post("/car", handler.CarOffers)
		r.Post("/family/health", handler.FamilyHealthOffers)
	})

	// Documents (writes require a user)
	router.Route("/documents", func(r chi.Router) {
		r.Get("/", handler.ListDocuments)
		r.Get("/{id}", handler.GetDocument)
		r.Get("/by-number/{number}", handler.GetDocumentByNumber)
		r.Get("/renewals", handler.ListRenewals)
		r.Get("/refunds", handler.ListRefunds)

		r.Group(func(r chi.Router) {
			r.Use(UserMiddleware)
			r.Post("/car", handler.IssueCarDocument)
			r.Post("/life", handler.IssueLifeDocument)
			r.Post("/health", handler.IssueHealthDocument)
			r.Post("/health/group", handler.IssueGroupHealthDocument)
			r.Put("/{id}", handler.UpdateDocument)
			r.Post("/renewals", handler.CreateRenewal)
			r.Patch("/renewals/{id}", handler.UpdateRenewal)
			r.Post("/refunds", handler.CreateRefund)
			r.Patch("/refunds/{id}", handler.UpdateRefund)
		})
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
