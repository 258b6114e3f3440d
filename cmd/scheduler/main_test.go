package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/config"
	"github.com/example/session-scheduler/internal/persistence/memory"
	"github.com/example/session-scheduler/internal/persistence/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunHashKey(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"hash-key", "secret"}, &out))

	encoded := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))
	assert.NoError(t, application.VerifyAPIKey(encoded, "secret"))
	assert.ErrorIs(t, application.VerifyAPIKey(encoded, "other"), application.ErrUnauthorized)
}

func TestRunRejectsBadArguments(t *testing.T) {
	assert.Error(t, run(context.Background(), []string{"hash-key"}, io.Discard))
	assert.Error(t, run(context.Background(), []string{"bogus"}, io.Discard))
}

func TestRunMigrateWithSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.db")
	t.Setenv("SCHEDULER_STORAGE_DRIVER", config.DriverSQLite)
	t.Setenv("SCHEDULER_SQLITE_DSN", path)
	t.Setenv("SCHEDULER_API_KEY_HASH", "unused")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"migrate"}, &out))
	assert.Contains(t, out.String(), "migrations applied")

	// A second run finds nothing pending.
	require.NoError(t, run(context.Background(), []string{"migrate"}, io.Discard))
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		storage, err := openStorage(ctx, config.Config{StorageDriver: config.DriverMemory}, testLogger())
		require.NoError(t, err)
		assert.IsType(t, &memory.Storage{}, storage)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.Config{StorageDriver: config.DriverSQLite, SQLiteDSN: filepath.Join(t.TempDir(), "s.db")}
		storage, err := openStorage(ctx, cfg, testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { _ = storage.Close() })
		assert.IsType(t, &sqlite.Storage{}, storage)
		require.NoError(t, storage.Migrate(ctx))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := openStorage(ctx, config.Config{StorageDriver: "mongo"}, testLogger())
		assert.ErrorContains(t, err, "mongo")
	})
}

func TestNewHandler(t *testing.T) {
	lowCost := application.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}
	hash, err := application.HashAPIKey("secret", lowCost)
	require.NoError(t, err)

	cfg := config.Config{
		APIKeyHash:          hash,
		Location:            time.UTC,
		PreviewLimit:        5,
		PreviewCacheTTL:     time.Minute,
		ConflictConcurrency: 2,
		CORSOrigins:         []string{"*"},
	}
	handler, err := newHandler(cfg, memory.New(), testLogger())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := `{"name":"Lab","location":"B1","capacity":12}`
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Room struct {
			ID string `json:"id"`
		} `json:"room"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Len(t, created.Room.ID, 36)

	cfg.APIKeyHash = "not-a-hash"
	_, err = newHandler(cfg, memory.New(), testLogger())
	assert.ErrorIs(t, err, application.ErrInvalidAPIKeyHash)
}
