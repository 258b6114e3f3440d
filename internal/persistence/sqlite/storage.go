// Package sqlite implements persistence.Storage on modernc.org/sqlite.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
	dateLayout      = "2006-01-02"
)

// Storage bundles the SQLite repositories behind one connection pool.
type Storage struct {
	*RoomRepository
	*SeriesRepository
	*SessionRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var _ persistence.Storage = (*Storage)(nil)

// Open connects to the database. Call Migrate before first use.
func Open(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	retry := NewRetryHelper(DefaultRetryConfig())
	return &Storage{
		RoomRepository:    NewRoomRepository(pool, retry),
		SeriesRepository:  NewSeriesRepository(pool, retry),
		SessionRepository: NewSessionRepository(pool, retry),
		pool:              pool,
		logger:            logger.With("storage", "sqlite"),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(migrationFiles),
		migration.NewSQLiteExecutor(s.pool.DB()),
		"migrations",
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Pool exposes the connection pool to tests and tooling.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse date %q: %w", value, err)
	}
	return t, nil
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
