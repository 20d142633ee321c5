// Command shelf serves the films and texts collections over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/asaidimu/go-shelf/api"
	"github.com/asaidimu/go-shelf/catalog"
	"github.com/asaidimu/go-shelf/config"
	"github.com/asaidimu/go-shelf/core/persistence"
	"github.com/asaidimu/go-shelf/jsonfile"
	"github.com/asaidimu/go-shelf/sqlite"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	driver, err := openDriver(cfg.Storage, logger)
	if err != nil {
		return err
	}

	store, err := persistence.NewPersistence(driver, logger)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	defer func() {
		if cErr := store.Close(); cErr != nil {
			logger.Error("Error closing storage", zap.Error(cErr))
		}
	}()

	if err := catalog.Register(store, catalog.Options{Seed: cfg.Storage.Seed}); err != nil {
		return err
	}
	logEvents(store, logger)

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      api.NewServer(store, logger).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting API server",
			zap.String("address", srv.Addr),
			zap.String("storage", cfg.Storage.Type),
			zap.Strings("collections", store.Collections()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openDriver selects the storage backend named by the configuration.
func openDriver(cfg config.StorageConfig, logger *zap.Logger) (persistence.StorageDriver, error) {
	switch cfg.Type {
	case config.StorageJSON:
		return jsonfile.NewDriver(cfg.DataDir, logger.Named("jsonfile"))
	case config.StorageSQLite:
		return sqlite.Open(cfg.SQLitePath, logger.Named("sqlite"), sqlite.DefaultDriverOptions())
	case config.StorageMemory:
		return persistence.NewMemoryDriver(), nil
	default:
		return nil, fmt.Errorf("unknown storage type '%s'", cfg.Type)
	}
}

// logEvents writes mutation and storage events to the log.
func logEvents(p persistence.PersistenceInterface, logger *zap.Logger) {
	logger = logger.Named("events")
	events := []persistence.PersistenceEventType{
		persistence.DocumentCreateSuccess,
		persistence.DocumentReplaceSuccess,
		persistence.DocumentUpdateSuccess,
		persistence.DocumentDeleteSuccess,
		persistence.DocumentCreateFailed,
		persistence.DocumentReplaceFailed,
		persistence.DocumentUpdateFailed,
		persistence.DocumentDeleteFailed,
		persistence.StorageReadFailed,
		persistence.StorageWriteFailed,
	}

	for _, eventType := range events {
		p.RegisterSubscription(persistence.RegisterSubscriptionOptions{
			Event: eventType,
			Callback: func(ctx context.Context, event persistence.PersistenceEvent) error {
				fields := []zap.Field{
					zap.String("event", string(event.Type)),
					zap.String("operation", event.Operation),
				}
				if event.Collection != nil {
					fields = append(fields, zap.String("collection", *event.Collection))
				}
				if event.Duration != nil {
					fields = append(fields, zap.Int64("duration_ms", *event.Duration))
				}
				if event.Error != nil {
					fields = append(fields, zap.String("error", *event.Error))
					if len(event.Issues) > 0 {
						fields = append(fields, zap.Any("issues", event.Issues))
					}
					logger.Warn("Persistence event", fields...)
					return nil
				}
				logger.Info("Persistence event", fields...)
				return nil
			},
		})
	}
}
