package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

type fileScanner struct {
	fsys fs.FS
}

// NewFileScanner returns a FileScanner reading from fsys.
func NewFileScanner(fsys fs.FS) FileScanner {
	return &fileScanner{fsys: fsys}
}

// ScanMigrations returns the migrations in dir sorted by numeric version.
func (s *fileScanner) ScanMigrations(dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(s.fsys, dir)
	if err != nil {
		return nil, NewMigrationError("", dir, "read directory", err)
	}

	var migrations []Migration
	seen := make(map[int]string)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		migration, err := s.ParseMigrationFile(path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		number, _ := strconv.Atoi(migration.Version)
		if existing, ok := seen[number]; ok {
			return nil, NewMigrationError(migration.Version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: version %s found in both %s and %s", ErrDuplicateVersion, migration.Version, existing, entry.Name()))
		}
		seen[number] = entry.Name()

		migrations = append(migrations, *migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return versionNumber(migrations[i].Version) < versionNumber(migrations[j].Version)
	})
	return migrations, nil
}

// ValidateFileName checks the {version}_{description}.sql convention.
func (s *fileScanner) ValidateFileName(filename string) error {
	matches := migrationFilePattern.FindStringSubmatch(filename)
	if matches == nil {
		return fmt.Errorf("%w: filename '%s' does not match pattern '{version}_{description}.sql'",
			ErrInvalidMigrationFile, filename)
	}
	if _, err := strconv.Atoi(matches[1]); err != nil {
		return fmt.Errorf("%w: version '%s' in filename '%s' is not a valid number",
			ErrInvalidVersion, matches[1], filename)
	}
	return nil
}

// ParseMigrationFile reads one migration. The description comes from a
// "-- Description:" header comment when present, otherwise from the name.
func (s *fileScanner) ParseMigrationFile(filePath string) (*Migration, error) {
	filename := path.Base(filePath)
	if err := s.ValidateFileName(filename); err != nil {
		return nil, NewMigrationError("", filePath, "validate filename", err)
	}
	matches := migrationFilePattern.FindStringSubmatch(filename)
	version := matches[1]

	content, err := fs.ReadFile(s.fsys, filePath)
	if err != nil {
		return nil, NewMigrationError(version, filePath, "read file", err)
	}
	sqlText := string(content)

	if len(splitStatements(sqlText)) == 0 {
		return nil, NewMigrationError(version, filePath, "validate content",
			fmt.Errorf("%w: no SQL statements found", ErrInvalidMigrationFile))
	}
	if err := checkBalanced(sqlText); err != nil {
		return nil, NewMigrationError(version, filePath, "validate SQL syntax", err)
	}

	description := headerDescription(sqlText)
	if description == "" {
		description = strings.ReplaceAll(matches[2], "_", " ")
	}

	sum := sha256.Sum256(content)
	return &Migration{
		Version:     version,
		Description: description,
		SQL:         sqlText,
		FilePath:    filePath,
		Checksum:    hex.EncodeToString(sum[:]),
	}, nil
}

// checkBalanced catches unterminated string literals and unmatched
// parentheses outside of literals.
func checkBalanced(sqlText string) error {
	depth := 0
	inString := false
	for _, line := range strings.Split(sqlText, "\n") {
		if !inString {
			if idx := strings.Index(line, "--"); idx >= 0 {
				line = line[:idx]
			}
		}
		for _, r := range line {
			switch {
			case r == '\'':
				inString = !inString
			case inString:
			case r == '(':
				depth++
			case r == ')':
				depth--
				if depth < 0 {
					return fmt.Errorf("%w: unmatched closing parenthesis", ErrInvalidMigrationFile)
				}
			}
		}
	}
	if inString {
		return fmt.Errorf("%w: unterminated string literal", ErrInvalidMigrationFile)
	}
	if depth != 0 {
		return fmt.Errorf("%w: unmatched opening parenthesis", ErrInvalidMigrationFile)
	}
	return nil
}

func headerDescription(sqlText string) string {
	for _, line := range strings.Split(sqlText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			return ""
		}
		if rest, ok := strings.CutPrefix(line, "-- Description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func versionNumber(version string) int {
	n, _ := strconv.Atoi(version)
	return n
}
