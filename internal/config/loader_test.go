package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"SCHEDULER_HTTP_PORT",
	"SCHEDULER_STORAGE_DRIVER",
	"SCHEDULER_SQLITE_DSN",
	"SCHEDULER_POSTGRES_DSN",
	"SCHEDULER_API_KEY_HASH",
	"SCHEDULER_TIMEZONE",
	"SCHEDULER_PREVIEW_LIMIT",
	"SCHEDULER_PREVIEW_CACHE_TTL",
	"SCHEDULER_CONFLICT_CONCURRENCY",
	"SCHEDULER_CORS_ORIGINS",
	"SCHEDULER_MAX_ROOM_CAPACITY",
	"SCHEDULER_LOG_LEVEL",
}

// clearEnv blanks every key for the duration of the test. Empty values are
// treated as unset by Load.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_API_KEY_HASH", "$argon2id$hash")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.HTTPPort)
		assert.Equal(t, DriverSQLite, cfg.StorageDriver)
		assert.Equal(t, "scheduler.db", cfg.SQLiteDSN)
		assert.Equal(t, "$argon2id$hash", cfg.APIKeyHash)
		assert.Equal(t, time.UTC, cfg.Location)
		assert.Equal(t, 10, cfg.PreviewLimit)
		assert.Equal(t, 5*time.Minute, cfg.PreviewCacheTTL)
		assert.Equal(t, 4, cfg.ConflictConcurrency)
		assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
		assert.Zero(t, cfg.MaxRoomCapacity)
		assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t, "必須の環境変数が設定されていません: SCHEDULER_API_KEY_HASH", err.Error())
	})

	t.Run("postgres driver requires a dsn", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_API_KEY_HASH", "hash")
		t.Setenv("SCHEDULER_STORAGE_DRIVER", "Postgres")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SCHEDULER_POSTGRES_DSN")
	})

	t.Run("parses every field", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_API_KEY_HASH", "hash")
		t.Setenv("SCHEDULER_HTTP_PORT", "9090")
		t.Setenv("SCHEDULER_STORAGE_DRIVER", "postgres")
		t.Setenv("SCHEDULER_POSTGRES_DSN", "postgres://localhost/scheduler")
		t.Setenv("SCHEDULER_TIMEZONE", "Asia/Tokyo")
		t.Setenv("SCHEDULER_PREVIEW_LIMIT", "25")
		t.Setenv("SCHEDULER_PREVIEW_CACHE_TTL", "1m")
		t.Setenv("SCHEDULER_CONFLICT_CONCURRENCY", "8")
		t.Setenv("SCHEDULER_CORS_ORIGINS", " https://a.example , https://b.example,")
		t.Setenv("SCHEDULER_MAX_ROOM_CAPACITY", "50")
		t.Setenv("SCHEDULER_LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.HTTPPort)
		assert.Equal(t, DriverPostgres, cfg.StorageDriver)
		assert.Equal(t, "postgres://localhost/scheduler", cfg.PostgresDSN)
		assert.Equal(t, "Asia/Tokyo", cfg.Location.String())
		assert.Equal(t, 25, cfg.PreviewLimit)
		assert.Equal(t, time.Minute, cfg.PreviewCacheTTL)
		assert.Equal(t, 8, cfg.ConflictConcurrency)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
		assert.Equal(t, 50, cfg.MaxRoomCapacity)
		assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	})

	t.Run("aggregates invalid values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_HTTP_PORT", "http")
		t.Setenv("SCHEDULER_STORAGE_DRIVER", "mysql")
		t.Setenv("SCHEDULER_TIMEZONE", "Mars/Olympus")
		t.Setenv("SCHEDULER_PREVIEW_LIMIT", "0")
		t.Setenv("SCHEDULER_LOG_LEVEL", "loud")

		_, err := Load()
		require.Error(t, err)
		assert.Equal(t,
			"必須の環境変数が設定されていません: SCHEDULER_API_KEY_HASH\n"+
				"環境変数の値が不正です: SCHEDULER_HTTP_PORT, SCHEDULER_STORAGE_DRIVER, SCHEDULER_TIMEZONE, SCHEDULER_PREVIEW_LIMIT, SCHEDULER_LOG_LEVEL",
			err.Error())
	})
}
