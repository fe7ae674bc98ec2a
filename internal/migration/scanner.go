package migration

import (
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

// FileScanner lists the migration files of a directory. It never writes, so
// one scanner can be shared by concurrent callers.
type FileScanner struct {
	fsys fs.FS
}

// NewFileScanner creates a new file scanner
func NewFileScanner(fsys fs.FS) *FileScanner {
	return &FileScanner{fsys: fsys}
}

// ParseVersion reads the version from the leading digits of a file name:
// "003_create_users.up.sql" is version 3. Names without leading digits,
// version 0 and versions that do not fit the int column of the versions
// table are rejected.
func ParseVersion(name string) (int64, error) {
	end := 0
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("%w: %q has no leading number", ErrInvalidVersion, name)
	}
	v, err := strconv.ParseInt(name[:end], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidVersion, name)
	}
	return v, nil
}

// List returns the migrations of one direction sorted by ascending version.
// Files with equal versions keep their directory order.
func (s *FileScanner) List(direction Direction) ([]Migration, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	suffix := direction.Suffix()
	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		version, err := ParseVersion(entry.Name())
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, Migration{
			Version:   version,
			Direction: direction,
			FileName:  entry.Name(),
		})
	}

	sort.SliceStable(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Pending returns the up-migrations newer than current, oldest first.
func (s *FileScanner) Pending(current int64) ([]Migration, error) {
	all, err := s.List(Up)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, m := range all {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Find returns the first migration with the given version and direction, or
// nil when there is none.
func (s *FileScanner) Find(version int64, direction Direction) (*Migration, error) {
	all, err := s.List(direction)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Version == version {
			return &all[i], nil
		}
	}
	return nil, nil
}

// Read returns the SQL text of a migration.
func (s *FileScanner) Read(m Migration) (string, error) {
	content, err := fs.ReadFile(s.fsys, m.FileName)
	if err != nil {
		return "", fmt.Errorf("failed to read migration file %s: %w", m.FileName, err)
	}
	return string(content), nil
}
