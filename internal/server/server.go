// Package server provides the HTTP server and routing for the allocator.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/events"
	"github.com/aristath/allocator/internal/modules/allocation"
	allocationhandlers "github.com/aristath/allocator/internal/modules/allocation/handlers"
	"github.com/aristath/allocator/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/allocator/internal/modules/portfolio/handlers"
	"github.com/aristath/allocator/internal/modules/rebalancing"
	rebalancinghandlers "github.com/aristath/allocator/internal/modules/rebalancing/handlers"
	"github.com/aristath/allocator/internal/reliability"
	"github.com/aristath/allocator/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log                zerolog.Logger
	Port               int
	DevMode            bool
	Databases          map[string]*database.DB
	EventBus           *events.Bus
	Scheduler          *scheduler.Scheduler
	Backups            *reliability.BackupService
	AllocationService  *allocation.Service
	PortfolioService   *portfolio.Service
	RebalancingService *rebalancing.Service
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	port           int
	startedAt      time.Time
	cfg            Config
	systemHandlers *SystemHandlers
	eventsStream   *EventsStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		port:      cfg.Port,
		startedAt: time.Now(),
		cfg:       cfg,
	}

	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.Databases, cfg.Scheduler, cfg.Backups, s.startedAt)
	if cfg.EventBus != nil {
		s.eventsStream = NewEventsStreamHandler(cfg.EventBus, cfg.Log)
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Long-lived stream; kept outside the request timeout
		if s.eventsStream != nil {
			r.Get("/events/ws", s.eventsStream.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/system/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/system/jobs", s.systemHandlers.HandleJobsStatus)
			r.Get("/backups", s.systemHandlers.HandleListBackups)
			r.Post("/backups", s.systemHandlers.HandleTriggerBackup)

			if s.cfg.AllocationService != nil {
				allocationhandlers.NewHandler(s.cfg.AllocationService, s.cfg.Log).RegisterRoutes(r)
			}
			if s.cfg.PortfolioService != nil {
				portfoliohandlers.NewHandler(s.cfg.PortfolioService, s.cfg.Log).RegisterRoutes(r)
			}
			if s.cfg.RebalancingService != nil {
				rebalancinghandlers.NewHandler(s.cfg.RebalancingService, s.cfg.Log).RegisterRoutes(r)
			}
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
