package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Sentinel errors for migration source validation.
var (
	ErrNoMigrationFiles = errors.New("no migration files found")
	ErrOrphanedUp       = errors.New("orphaned up migration")
	ErrOrphanedDown     = errors.New("orphaned down migration")
	ErrSequenceGap      = errors.New("gap in migration sequence")
	ErrSequenceStart    = errors.New("migration sequence must start at 001")
)

// migrationFilenameRegex enforces the naming standard:
// 001_migration_name.up.sql / 001_migration_name.down.sql.
var migrationFilenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// MigrationSource validates the migration files in a directory before they
// are handed to the migration engine. Catching a missing down file or a
// sequence gap here fails the run before any SQL touches the database.
type MigrationSource struct {
	path string
}

// migrationFile is the parsed form of one migration filename.
type migrationFile struct {
	Sequence  int
	Name      string
	Direction string
}

// NewMigrationSource creates a source over a migrations directory.
func NewMigrationSource(path string) *MigrationSource {
	return &MigrationSource{path: path}
}

// List returns the migration filenames that conform to the naming standard,
// sorted lexicographically. Non-conforming .sql files are ignored here and
// rejected by Validate.
func (s *MigrationSource) List() ([]string, error) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if migrationFilenameRegex.MatchString(entry.Name()) {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)

	return files, nil
}

// Validate checks the whole directory: every .sql file follows the naming
// standard, every up has its down, and sequence numbers start at 001 with
// no gaps.
func (s *MigrationSource) Validate() error {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}

		if !migrationFilenameRegex.MatchString(entry.Name()) {
			return fmt.Errorf(
				"invalid migration filename: %s (expected: 001_name.up.sql or 001_name.down.sql)",
				entry.Name(),
			)
		}

		files = append(files, entry.Name())
	}

	if len(files) == 0 {
		return fmt.Errorf("%w in %s", ErrNoMigrationFiles, s.path)
	}

	if err := s.validatePairing(files); err != nil {
		return err
	}

	return s.validateSequence(files)
}

func parseMigrationFilename(filename string) (*migrationFile, error) {
	matches := migrationFilenameRegex.FindStringSubmatch(filename)
	if len(matches) != 4 {
		return nil, fmt.Errorf("invalid migration filename format: %s", filename)
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid sequence number in filename %s: %w", filename, err)
	}

	return &migrationFile{
		Sequence:  sequence,
		Name:      matches[2],
		Direction: matches[3],
	}, nil
}

// validatePairing ensures every up migration has a matching down migration.
func (s *MigrationSource) validatePairing(files []string) error {
	directions := make(map[string]map[string]bool)

	for _, file := range files {
		m, err := parseMigrationFilename(file)
		if err != nil {
			return err
		}

		key := fmt.Sprintf("%03d_%s", m.Sequence, m.Name)
		if directions[key] == nil {
			directions[key] = make(map[string]bool)
		}

		directions[key][m.Direction] = true
	}

	for key, dirs := range directions {
		if !dirs["up"] {
			return fmt.Errorf("%w: missing up migration for %s", ErrOrphanedDown, key)
		}

		if !dirs["down"] {
			return fmt.Errorf("%w: missing down migration for %s", ErrOrphanedUp, key)
		}
	}

	return nil
}

// validateSequence ensures sequence numbers start at 001 and have no gaps.
func (s *MigrationSource) validateSequence(files []string) error {
	seen := make(map[int]bool)

	for _, file := range files {
		m, err := parseMigrationFilename(file)
		if err != nil {
			return err
		}

		seen[m.Sequence] = true
	}

	sequences := make([]int, 0, len(seen))
	for seq := range seen {
		sequences = append(sequences, seq)
	}

	sort.Ints(sequences)

	if sequences[0] != 1 {
		return fmt.Errorf("%w: found %03d", ErrSequenceStart, sequences[0])
	}

	for i := 1; i < len(sequences); i++ {
		if sequences[i] != sequences[i-1]+1 {
			return fmt.Errorf("%w: expected %03d, found %03d",
				ErrSequenceGap, sequences[i-1]+1, sequences[i])
		}
	}

	return nil
}
