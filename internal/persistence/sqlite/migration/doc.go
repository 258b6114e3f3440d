// Package migration applies versioned SQL files to a SQLite database.
//
// Files are read from an fs.FS (usually an embed.FS compiled into the
// binary) and must be named {version}_{description}.sql, e.g.
// "001_initial_schema.sql". Applied versions are tracked in the
// schema_migrations table; each file runs in its own transaction.
//
//	manager := migration.NewMigrationManager(
//		migration.NewFileScanner(files), migration.NewSQLiteExecutor(db), ".", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
