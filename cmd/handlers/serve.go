package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"podgen/internal/config"
	"podgen/internal/logger"
	"podgen/internal/server"
	"podgen/internal/worker"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port      int
		host      string
		useMemory bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and background generation workers",
		Long: `Start the podgen API server.

The server provides:
  • Podcast CRUD endpoints
  • POST /api/podcasts/{id}/generate returning a log id immediately
  • Generation log and episode polling endpoints
  • Synthesized audio under /media/

Generation runs happen in background workers; poll the returned log id
to follow progress.

Examples:
  # Start server on default port 8080
  podgen serve

  # Start on custom port with the in-memory store
  podgen serve --port 3000 --memory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host, useMemory)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().BoolVar(&useMemory, "memory", false, "Use the in-memory document store instead of MongoDB")

	return cmd
}

func runServe(ctx context.Context, port int, host string, useMemory bool) error {
	log := logger.Get()

	a, cleanup, err := buildApp(ctx, useMemory)
	if err != nil {
		return err
	}
	defer cleanup(context.Background())

	serverCfg := a.cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	queue := worker.NewQueue(a.orchestrator, a.cfg.Generation.Workers)

	srv := server.New(a.db, queue, serverCfg, a.blobs.RootDir())

	serverErrors := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		queue.Close()
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			config.ParseDuration(serverCfg.WriteTimeout, 30*time.Second))
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		// Let in-flight generations finish before closing the store.
		queue.Close()
		log.Info("Server stopped")
	}

	return nil
}
