package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"podgen/internal/config"
	"podgen/internal/core"
	"podgen/internal/logger"
	"podgen/internal/persistence"
	"podgen/internal/pipeline"
)

// Scheduler accepts generation requests and returns the log id that tracks
// the run. Satisfied by *worker.Queue.
type Scheduler interface {
	Submit(ctx context.Context, podcast core.Podcast, opts pipeline.GenerateOptions) (string, error)
}

// Server is the HTTP boundary of the service.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	db         persistence.Database
	scheduler  Scheduler
	config     config.Server
	mediaDir   string
	log        *slog.Logger
}

// New creates a new HTTP server instance. mediaDir is served under /media/
// when non-empty.
func New(db persistence.Database, scheduler Scheduler, cfg config.Server, mediaDir string) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		db:        db,
		scheduler: scheduler,
		config:    cfg,
		mediaDir:  mediaDir,
		log:       logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  config.ParseDuration(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout: config.ParseDuration(cfg.WriteTimeout, 30*time.Second),
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.requireAPIToken)

		r.Route("/podcasts", func(r chi.Router) {
			r.Get("/", s.handleListPodcasts)
			r.Post("/", s.handleCreatePodcast)
			r.Get("/{id}", s.handleGetPodcast)
			r.Put("/{id}", s.handleUpdatePodcast)
			r.Delete("/{id}", s.handleDeletePodcast)
			r.Post("/{id}/generate", s.handleGenerate)
			r.Get("/{id}/generation-logs", s.handleListGenerationLogs)
		})

		r.Route("/episodes", func(r chi.Router) {
			r.Get("/", s.handleListEpisodes)
			r.Get("/{id}", s.handleGetEpisode)
		})

		r.Get("/generation-logs/{id}", s.handleGetGenerationLog)
	})

	if s.mediaDir != "" {
		fs := http.StripPrefix("/media/", http.FileServer(http.Dir(s.mediaDir)))
		s.router.Handle("/media/*", fs)
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// Router returns the chi router instance (useful for testing).
func (s *Server) Router() *chi.Mux {
	return s.router
}
