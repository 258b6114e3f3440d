// Package postgres implements persistence.Storage on PostgreSQL through
// pgxpool. Member ids are stored as text[] so overlap pre-filtering can use
// the && operator.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/session-scheduler/internal/persistence"
)

//go:embed schema.sql
var schema string

// Config holds pool settings on top of the DSN.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectAttempts int
	RetryDelay      time.Duration
}

// DefaultConfig returns pool defaults for a small service.
func DefaultConfig(dsn string) Config {
	return Config{
		DSN:             dsn,
		MaxConns:        20,
		MinConns:        2,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectAttempts: 5,
		RetryDelay:      2 * time.Second,
	}
}

// Storage implements persistence.Storage.
type Storage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ persistence.Storage = (*Storage)(nil)

// Open creates and pings a pool, retrying while the server starts up.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("storage", "postgres")

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	attempts := max(cfg.ConnectAttempts, 1)

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		if attempt == attempts {
			break
		}
		logger.WarnContext(ctx, "postgres connect attempt failed",
			"attempt", attempt, "max_attempts", attempts, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryDelay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	return &Storage{pool: pool, logger: logger}, nil
}

// Migrate creates the schema when missing.
func (s *Storage) Migrate(ctx context.Context) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range strings.Split(schema, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	s.logger.InfoContext(ctx, "database schema ready")
	return nil
}

// Close releases the pool.
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// mapError translates pgx errors into persistence sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
		case "23503":
			return fmt.Errorf("%w: %w", persistence.ErrForeignKeyViolation, err)
		case "23514", "23502":
			return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
		}
	}
	return err
}

// args numbers bind parameters as they are added.
type args []any

func (a *args) add(value any) string {
	*a = append(*a, value)
	return "$" + strconv.Itoa(len(*a))
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func emptyToNil(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values
}
