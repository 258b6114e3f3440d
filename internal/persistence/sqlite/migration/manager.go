package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type migrationManager struct {
	scanner  FileScanner
	executor Executor
	dir      string
	logger   *slog.Logger
}

// NewMigrationManager wires a scanner reading dir to an executor. A nil
// logger falls back to slog.Default.
func NewMigrationManager(scanner FileScanner, executor Executor, dir string, logger *slog.Logger) MigrationManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &migrationManager{
		scanner:  scanner,
		executor: executor,
		dir:      dir,
		logger:   logger.With("component", "migration"),
	}
}

// RunMigrations executes all pending migrations in version order and stops
// at the first failure.
func (m *migrationManager) RunMigrations(ctx context.Context) error {
	started := time.Now()

	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to determine pending migrations", "error", err)
		return err
	}
	if len(pending) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date")
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", "pending_count", len(pending))

	for _, migration := range pending {
		logger := m.logger.With("version", migration.Version, "description", migration.Description)
		migrationStarted := time.Now()

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}

		elapsed := time.Since(migrationStarted)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			logger.ErrorContext(ctx, "failed to record migration", "error", err)
			return NewMigrationError(migration.Version, migration.FilePath, "record migration", err)
		}

		logger.InfoContext(ctx, "migration applied", "duration_ms", elapsed.Milliseconds())
	}

	m.logger.InfoContext(ctx, "migrations completed",
		"applied_count", len(pending),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

// GetPendingMigrations returns the files not yet recorded in
// schema_migrations after checking the sequence has no gaps and that applied
// files are unchanged.
func (m *migrationManager) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	available, err := m.scanner.ScanMigrations(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := validateSequence(available, applied); err != nil {
		return nil, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, a := range applied {
		appliedByVersion[versionNumber(a.Version)] = a
	}

	var pending []Migration
	for _, migration := range available {
		if _, ok := appliedByVersion[versionNumber(migration.Version)]; !ok {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// GetMigrationStatus reports the latest applied version and what is pending.
func (m *migrationManager) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return nil, err
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	status := &MigrationStatus{
		PendingCount:      len(pending),
		AppliedMigrations: applied,
		PendingMigrations: pending,
	}
	for _, a := range applied {
		if status.CurrentVersion == "" || versionNumber(a.Version) > versionNumber(status.CurrentVersion) {
			status.CurrentVersion = a.Version
		}
	}
	return status, nil
}

func validateSequence(available []Migration, applied []AppliedMigration) error {
	files := make(map[int]Migration, len(available))
	for _, migration := range available {
		files[versionNumber(migration.Version)] = migration
	}

	for i := 1; i < len(available); i++ {
		prev, next := versionNumber(available[i-1].Version), versionNumber(available[i].Version)
		if next != prev+1 {
			return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, prev+1)
		}
	}

	for _, a := range applied {
		file, ok := files[versionNumber(a.Version)]
		if !ok {
			return fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && a.Checksum != file.Checksum {
			return NewMigrationError(file.Version, file.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
