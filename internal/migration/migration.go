package migration

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// VersionsTable records the version of every applied up-migration.
const VersionsTable = "db_versions"

// ErrInvalidVersion is returned for a migration file whose name does not
// start with a positive integer.
var ErrInvalidVersion = errors.New("invalid migration version")

// Migration is one SQL file of the migration directory.
type Migration struct {
	Version   int64     `json:"version"`
	Direction Direction `json:"direction"`
	FileName  string    `json:"file_name"`
}

func (m Migration) String() string {
	return fmt.Sprintf("%d %s (%s)", m.Version, m.Direction, m.FileName)
}

// VersionRecord is a row of the versions table.
type VersionRecord struct {
	Version   int64     `json:"version"`
	AppliedAt time.Time `json:"applied_at"`
}

// Direction represents the migration direction
type Direction int

const (
	Up Direction = iota
	Down
)

// String returns the string representation of the direction
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Suffix is the file name ending that marks a script of this direction.
func (d Direction) Suffix() string {
	return d.String() + ".sql"
}

// ParseDirection parses "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	default:
		return 0, fmt.Errorf("unknown migration direction %q", s)
	}
}
