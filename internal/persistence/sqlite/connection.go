package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/persistence/sqlite/migration"
)

// errDatabaseBusy marks SQLITE_BUSY and SQLITE_LOCKED failures, the only
// ones worth retrying.
var errDatabaseBusy = errors.New("sqlite: database busy")

// ConnectionPool owns the *sql.DB and its configuration.
type ConnectionPool struct {
	db     *sql.DB
	config migration.SQLiteConfig
}

// NewConnectionPool opens the database described by config.
func NewConnectionPool(config migration.SQLiteConfig) (*ConnectionPool, error) {
	db, err := migration.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &ConnectionPool{db: db, config: config}, nil
}

// DB returns the underlying database handle.
func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db
}

// Close closes the pool.
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Ping tests the database connection.
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	return cp.db.PingContext(ctx)
}

// TransactionFunc runs inside WithTransaction.
type TransactionFunc func(tx *sql.Tx) error

// WithTransaction commits when fn returns nil and rolls back otherwise,
// including when fn panics.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := cp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mapError translates driver errors into persistence sentinels. The original
// error stays in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if alreadyMapped(err) {
		return err
	}

	var driverErr *sqlitedriver.Error
	if !errors.As(err, &driverErr) {
		return err
	}

	switch driverErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %w", persistence.ErrForeignKeyViolation, err)
	case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
	}

	// Without extended result codes only the primary code is available.
	switch driverErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %w", errDatabaseBusy, err)
	case sqlite3.SQLITE_CONSTRAINT:
		message := err.Error()
		switch {
		case strings.Contains(message, "UNIQUE"):
			return fmt.Errorf("%w: %w", persistence.ErrDuplicate, err)
		case strings.Contains(message, "FOREIGN KEY"):
			return fmt.Errorf("%w: %w", persistence.ErrForeignKeyViolation, err)
		default:
			return fmt.Errorf("%w: %w", persistence.ErrConstraintViolation, err)
		}
	}
	return err
}

func alreadyMapped(err error) bool {
	for _, target := range []error{
		persistence.ErrNotFound,
		persistence.ErrDuplicate,
		persistence.ErrConstraintViolation,
		persistence.ErrForeignKeyViolation,
		errDatabaseBusy,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RetryConfig configures retries of busy database operations.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a retry configuration with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryHelper re-runs an operation while it fails with a busy database.
type RetryHelper struct {
	config RetryConfig
}

// NewRetryHelper creates a new retry helper.
func NewRetryHelper(config RetryConfig) *RetryHelper {
	return &RetryHelper{config: config}
}

// WithRetry calls fn until it succeeds, fails with a non-busy error, the
// retries run out, or ctx is done. Returned errors are already mapped.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
			if delay > rh.config.MaxDelay {
				delay = rh.config.MaxDelay
			}
		}

		lastErr = mapError(fn())
		if lastErr == nil || !errors.Is(lastErr, errDatabaseBusy) {
			return lastErr
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", rh.config.MaxRetries, lastErr)
}
