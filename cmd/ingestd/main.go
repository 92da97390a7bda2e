package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/csvflow/ingestd/internal/config"
	"github.com/csvflow/ingestd/internal/db"
	"github.com/csvflow/ingestd/internal/ingestion"
	"github.com/csvflow/ingestd/internal/middleware"
	"github.com/csvflow/ingestd/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/cors"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("daemon exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	conn, err := db.NewConnection(ctx, settings.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if err := db.RunMigrations("./migrations", settings.DB.MigrateURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fileRepo := repository.NewFileEntryRepository(conn.Pool)
	salesRepo := repository.NewSalesRecordRepository(conn.Pool)
	userRepo := repository.NewUserRepository(conn.Pool)

	ownerID, err := resolveOwner(ctx, userRepo, settings.Owner)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(settings.WatchDir, 0o755); err != nil {
		return fmt.Errorf("failed to create watch dir: %w", err)
	}

	coordinator := ingestion.NewCoordinator(fileRepo, salesRepo, ownerID, ingestion.Options{
		WorkerCount:          settings.WorkerCount,
		BatchSize:            settings.BatchSize,
		WorkerTimeout:        settings.WorkerTimeout,
		MaxConcurrentWorkers: settings.MaxConcurrentWorkers,
	}, logger)

	watcher := ingestion.NewWatcher(settings.WatchDir, fileRepo, coordinator, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("watcher stopped", "error", err)
		}
	}()

	corsHandler := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	mux := http.NewServeMux()
	mux.Handle("/files", ingestion.NewHTTPHandler(fileRepo))

	server := &http.Server{
		Addr:         settings.ServerAddr,
		Handler:      middleware.LoggingMiddleware(logger)(corsHandler.Handler(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("status server listening", "addr", settings.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("status server failed", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}

// resolveOwner maps the configured owner name to an account. With no name
// configured, the oldest account in the store is used; a store with no
// accounts at all refuses startup, since every ingested record needs an
// owner.
func resolveOwner(ctx context.Context, users repository.UserRepository, owner string) (uuid.UUID, error) {
	if owner != "" {
		user, err := users.GetByUsername(ctx, owner)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to resolve owner %q: %w", owner, err)
		}
		return user.ID, nil
	}

	user, err := users.First(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, errors.New("no users found in store; create an account or set ingest.owner")
		}
		return uuid.Nil, fmt.Errorf("failed to resolve default owner: %w", err)
	}
	return user.ID, nil
}
