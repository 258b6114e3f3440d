package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/session-scheduler/internal/persistence/sqlite"
	"github.com/example/session-scheduler/internal/persistence/sqlite/migration"
)

// NewSQLiteStorage opens a migrated SQLite database in a temporary
// directory. The storage is closed when tb finishes.
func NewSQLiteStorage(tb testing.TB) *sqlite.Storage {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	storage, err := sqlite.Open(migration.TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("open sqlite storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("migrate sqlite storage: %v", err)
	}
	return storage
}

// SeedRooms inserts room fixtures directly through the repository.
func SeedRooms(tb testing.TB, storage *sqlite.Storage, rooms ...RoomFixture) {
	tb.Helper()
	for _, room := range rooms {
		if err := storage.CreateRoom(context.Background(), room.Persistence()); err != nil {
			tb.Fatalf("seed room %s: %v", room.ID, err)
		}
	}
}
