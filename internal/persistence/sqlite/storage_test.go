package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/session-scheduler/internal/persistence"
	"github.com/example/session-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/session-scheduler/internal/persistence/storagetest"
)

func openTestStorage(t *testing.T, config migration.SQLiteConfig) *Storage {
	t.Helper()
	store, err := Open(config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestStorage_InMemory(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) persistence.Storage {
		return openTestStorage(t, migration.InMemoryTestSQLiteConfig())
	})
}

func TestStorage_File(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) persistence.Storage {
		return openTestStorage(t, migration.TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "scheduler.db")))
	})
}

func TestStorage_MigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.db")
	store := openTestStorage(t, migration.TempFileTestSQLiteConfig(path))
	require.NoError(t, store.Migrate(context.Background()))

	var count int
	require.NoError(t, store.Pool().DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStorage_TimestampsKeepSubSecondPrecision(t *testing.T) {
	ctx := context.Background()
	store := openTestStorage(t, migration.InMemoryTestSQLiteConfig())

	start := time.Date(2025, 3, 3, 9, 0, 0, 123456789, time.FixedZone("JST", 9*3600))
	require.NoError(t, store.CreateSessions(ctx, []persistence.Session{{
		ID:       "s1",
		StartsAt: start,
		EndsAt:   start.Add(time.Hour),
	}}))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, start.Equal(got.StartsAt))
	assert.Equal(t, time.UTC, got.StartsAt.Location())
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))

	mapped := fmt.Errorf("%w: detail", persistence.ErrDuplicate)
	assert.Equal(t, mapped, mapError(mapped), "already mapped errors pass through")
}

func TestRetryHelper(t *testing.T) {
	ctx := context.Background()
	helper := NewRetryHelper(RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2})

	t.Run("busy errors are retried until they run out", func(t *testing.T) {
		calls := 0
		err := helper.WithRetry(ctx, func() error {
			calls++
			return errDatabaseBusy
		})
		assert.ErrorIs(t, err, errDatabaseBusy)
		assert.Equal(t, 3, calls)
	})

	t.Run("busy then success", func(t *testing.T) {
		calls := 0
		err := helper.WithRetry(ctx, func() error {
			calls++
			if calls == 1 {
				return errDatabaseBusy
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("other errors are returned at once", func(t *testing.T) {
		calls := 0
		err := helper.WithRetry(ctx, func() error {
			calls++
			return persistence.ErrNotFound
		})
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		slow := NewRetryHelper(RetryConfig{MaxRetries: 2, InitialDelay: time.Hour, MaxDelay: time.Hour, BackoffFactor: 1})
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := slow.WithRetry(cancelled, func() error { return errDatabaseBusy })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestConnectionPool_WithTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	store := openTestStorage(t, migration.InMemoryTestSQLiteConfig())

	err := store.Pool().WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO rooms (id, name, capacity, created_at, updated_at) VALUES ('r1', 'Lab', 10, '', '')`); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	_, err = store.GetRoom(ctx, "r1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}
