package migration

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileScanner_ScanMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_add_index.sql":      {Data: []byte("CREATE INDEX idx_a ON a (name);")},
		"migrations/001_initial_schema.sql": {Data: []byte("-- Description: Create table a\nCREATE TABLE a (id TEXT PRIMARY KEY, name TEXT);")},
		"migrations/README.md":              {Data: []byte("ignored")},
	}

	migrations, err := NewFileScanner(fsys).ScanMigrations("migrations")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, "001", migrations[0].Version)
	assert.Equal(t, "Create table a", migrations[0].Description)
	assert.Equal(t, "migrations/001_initial_schema.sql", migrations[0].FilePath)
	assert.Len(t, migrations[0].Checksum, 64)
	assert.Equal(t, "002", migrations[1].Version)
	assert.Equal(t, "add index", migrations[1].Description)
}

func TestFileScanner_RejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
		want error
	}{
		{
			name: "bad name",
			fsys: fstest.MapFS{"m/initial.sql": {Data: []byte("SELECT 1;")}},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "duplicate version",
			fsys: fstest.MapFS{
				"m/001_a.sql": {Data: []byte("SELECT 1;")},
				"m/1_b.sql":   {Data: []byte("SELECT 2;")},
			},
			want: ErrDuplicateVersion,
		},
		{
			name: "comments only",
			fsys: fstest.MapFS{"m/001_empty.sql": {Data: []byte("-- nothing here\n")}},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "unbalanced parenthesis",
			fsys: fstest.MapFS{"m/001_broken.sql": {Data: []byte("CREATE TABLE a (id TEXT;")}},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "unterminated literal",
			fsys: fstest.MapFS{"m/001_broken.sql": {Data: []byte("INSERT INTO a VALUES ('x);")}},
			want: ErrInvalidMigrationFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileScanner(tt.fsys).ScanMigrations("m")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestSplitStatements(t *testing.T) {
	statements := splitStatements(`
-- Description: two tables
CREATE TABLE a (id TEXT);

-- trailing comment
CREATE TABLE b (id TEXT);
`)
	assert.Equal(t, []string{"CREATE TABLE a (id TEXT)", "CREATE TABLE b (id TEXT)"}, statements)
}
