package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/session-scheduler/internal/logging"
)

// Storage drivers accepted by SCHEDULER_STORAGE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort      int
	StorageDriver string
	// SQLiteDSN is the database file path for the sqlite driver.
	SQLiteDSN   string
	PostgresDSN string
	// APIKeyHash is the argon2id hash every request key is checked against.
	APIKeyHash          string
	Location            *time.Location
	PreviewLimit        int
	PreviewCacheTTL     time.Duration
	ConflictConcurrency int
	CORSOrigins         []string
	MaxRoomCapacity     int
	LogLevel            slog.Level
}

// Load parses configuration values from the current process environment.
//
// Optional values fall back to defaults. Every missing or invalid variable is
// reported in a single error with a localized message.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:            8080,
		StorageDriver:       DriverSQLite,
		SQLiteDSN:           "scheduler.db",
		Location:            time.UTC,
		PreviewLimit:        10,
		PreviewCacheTTL:     5 * time.Minute,
		ConflictConcurrency: 4,
		CORSOrigins:         []string{"*"},
		LogLevel:            slog.LevelInfo,
	}

	var missing, invalid []string

	if value := env("SCHEDULER_HTTP_PORT"); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if value := env("SCHEDULER_STORAGE_DRIVER"); value != "" {
		switch driver := strings.ToLower(value); driver {
		case DriverSQLite, DriverPostgres, DriverMemory:
			cfg.StorageDriver = driver
		default:
			invalid = append(invalid, "SCHEDULER_STORAGE_DRIVER")
		}
	}

	if dsn := env("SCHEDULER_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.PostgresDSN = env("SCHEDULER_POSTGRES_DSN")
	if cfg.StorageDriver == DriverPostgres && cfg.PostgresDSN == "" {
		missing = append(missing, "SCHEDULER_POSTGRES_DSN")
	}

	if cfg.APIKeyHash = env("SCHEDULER_API_KEY_HASH"); cfg.APIKeyHash == "" {
		missing = append(missing, "SCHEDULER_API_KEY_HASH")
	}

	if value := env("SCHEDULER_TIMEZONE"); value != "" {
		loc, err := time.LoadLocation(value)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	parsePositiveInt("SCHEDULER_PREVIEW_LIMIT", &cfg.PreviewLimit, &invalid)
	parsePositiveInt("SCHEDULER_CONFLICT_CONCURRENCY", &cfg.ConflictConcurrency, &invalid)

	if value := env("SCHEDULER_PREVIEW_CACHE_TTL"); value != "" {
		ttl, err := time.ParseDuration(value)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SCHEDULER_PREVIEW_CACHE_TTL")
		} else {
			cfg.PreviewCacheTTL = ttl
		}
	}

	if value := env("SCHEDULER_CORS_ORIGINS"); value != "" {
		var origins []string
		for _, origin := range strings.Split(value, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) == 0 {
			invalid = append(invalid, "SCHEDULER_CORS_ORIGINS")
		} else {
			cfg.CORSOrigins = origins
		}
	}

	if value := env("SCHEDULER_MAX_ROOM_CAPACITY"); value != "" {
		capacity, err := strconv.Atoi(value)
		if err != nil || capacity < 0 {
			invalid = append(invalid, "SCHEDULER_MAX_ROOM_CAPACITY")
		} else {
			cfg.MaxRoomCapacity = capacity
		}
	}

	if value := env("SCHEDULER_LOG_LEVEL"); value != "" {
		level, err := logging.ParseLevel(value)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", ")))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parsePositiveInt(key string, target *int, invalid *[]string) {
	value := env(key)
	if value == "" {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		*invalid = append(*invalid, key)
		return
	}
	*target = n
}
