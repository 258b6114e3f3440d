package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/config"
	httptransport "github.com/example/session-scheduler/internal/http"
	"github.com/example/session-scheduler/internal/logging"
	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/persistence/memory"
	"github.com/example/session-scheduler/internal/persistence/postgres"
	"github.com/example/session-scheduler/internal/persistence/sqlite"
	"github.com/example/session-scheduler/internal/persistence/sqlite/migration"
)

const usage = `usage: scheduler [serve | migrate | hash-key <key>]`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	command := "serve"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "hash-key":
		return hashKey(args[1:], stdout)
	case "serve", "migrate":
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.StorageDriver, "error", err)
		return err
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(ctx); err != nil {
		logger.Error("failed to apply migrations", "driver", cfg.StorageDriver, "error", err)
		return err
	}
	if command == "migrate" {
		logger.Info("migrations applied", "driver", cfg.StorageDriver)
		return nil
	}

	handler, err := newHandler(cfg, storage, logger)
	if err != nil {
		return err
	}
	return serve(ctx, cfg, handler, logger)
}

func hashKey(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New(usage)
	}
	encoded, err := application.HashAPIKey(args[0], application.DefaultArgon2idParams)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, encoded)
	return err
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		return sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
	case config.DriverPostgres:
		return postgres.Open(ctx, postgres.DefaultConfig(cfg.PostgresDSN), logger)
	case config.DriverMemory:
		logger.Warn("using in-memory storage; data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func newHandler(cfg config.Config, storage persistence.Storage, logger *slog.Logger) (http.Handler, error) {
	verifier, err := application.NewAPIKeyVerifier(cfg.APIKeyHash)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULER_API_KEY_HASH: %w", err)
	}

	idGenerator := uuid.NewString
	now := time.Now

	roomService := application.NewRoomServiceWithLogger(storage, idGenerator, now, logger).
		WithMaxCapacity(cfg.MaxRoomCapacity)
	sessionService := application.NewSessionServiceWithLogger(storage, storage, idGenerator, now, application.SessionServiceConfig{
		Location:            cfg.Location,
		ConflictConcurrency: cfg.ConflictConcurrency,
		PreviewLimit:        cfg.PreviewLimit,
		PreviewCacheTTL:     cfg.PreviewCacheTTL,
	}, logger)

	return httptransport.NewRouter(httptransport.RouterConfig{
		Rules:       httptransport.NewRuleHandler(sessionService, cfg.Location, logger),
		Series:      httptransport.NewSeriesHandler(sessionService, cfg.Location, logger),
		Sessions:    httptransport.NewSessionHandler(sessionService, cfg.Location, logger),
		Rooms:       httptransport.NewRoomHandler(roomService, logger).WithSessions(sessionService, cfg.Location),
		APIKeys:     verifier,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	}), nil
}

func serve(ctx context.Context, cfg config.Config, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("scheduler API listening", "addr", server.Addr, "storage", cfg.StorageDriver, "location", cfg.Location.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	return nil
}
