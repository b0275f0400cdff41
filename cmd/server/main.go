/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shift allocation engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize SQLite store
  3. Optionally load a YAML seed
  4. Create API handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS (env var in brackets):
  --port, -p     HTTP server port (default: 8080)          [SHIFTS_PORT]
  --db           SQLite database path (default: shifts.db) [SHIFTS_DB]
                 Use ":memory:" for in-memory database
  --seed         YAML seed file loaded at startup          [SHIFTS_SEED]
  --log-level    debug, info, warn, error                  [SHIFTS_LOG_LEVEL]
  --log-format   text or json                              [SHIFTS_LOG_FORMAT]
  --cors-origin  allowed CORS origins                      [SHIFTS_CORS_ORIGINS]

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server --db=./data/shifts.db

  # In-memory database with demo data
  ./server --db=":memory:" --seed=./seed.yaml

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/warp/shift-engine/api"
	"github.com/warp/shift-engine/config"
	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "shift-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	logger := cfg.Logger()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, logger)

	if cfg.SeedPath != "" {
		seed, err := factory.LoadSeedFile(cfg.SeedPath)
		if err != nil {
			return err
		}
		if err := factory.Apply(context.Background(), seed, store, handler.Registry, handler.Allocations); err != nil {
			return fmt.Errorf("apply seed %s: %w", cfg.SeedPath, err)
		}
		logger.Info("seed loaded", "path", cfg.SeedPath)
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
