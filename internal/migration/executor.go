package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nicepg/internal/database"
)

// Executor runs migration scripts on a transaction and keeps the versions
// table in step with them.
type Executor struct {
	scanner *FileScanner
	version *VersionManager
	logger  *slog.Logger
}

// NewExecutor creates a new migration executor
func NewExecutor(scanner *FileScanner, version *VersionManager, logger *slog.Logger) *Executor {
	return &Executor{
		scanner: scanner,
		version: version,
		logger:  logger,
	}
}

// Execute runs one migration on tx: the script verbatim, then the version
// row insert (up) or delete (down). The caller owns commit and rollback.
func (e *Executor) Execute(ctx context.Context, tx *database.Handle, m Migration) error {
	startTime := time.Now()

	script, err := e.scanner.Read(m)
	if err != nil {
		return err
	}

	e.logger.Info("Executing migration", "version", m.Version, "direction", m.Direction.String(), "file", m.FileName)

	if !hasStatements(script) {
		e.logger.Warn("Migration file has no statements", "file", m.FileName)
	} else if _, err := tx.Exec(ctx, script); err != nil {
		return fmt.Errorf("failed to execute %s: %w", m.FileName, err)
	}

	switch m.Direction {
	case Up:
		err = e.version.Record(ctx, tx, m.Version)
	case Down:
		err = e.version.Remove(ctx, tx, m.Version)
	default:
		err = fmt.Errorf("unknown direction %d for %s", m.Direction, m.FileName)
	}
	if err != nil {
		return err
	}

	e.logger.Debug("Migration executed", "file", m.FileName, "duration", time.Since(startTime))
	return nil
}

// hasStatements reports whether script holds anything besides whitespace,
// semicolons, -- line comments and /* */ block comments (which nest, as in
// Postgres). Some engines reject a script without statements.
func hasStatements(script string) bool {
	for i := 0; i < len(script); {
		switch {
		case strings.HasPrefix(script[i:], "--"):
			end := strings.IndexByte(script[i:], '\n')
			if end < 0 {
				return false
			}
			i += end + 1
		case strings.HasPrefix(script[i:], "/*"):
			i += 2
			for depth := 1; depth > 0 && i < len(script); {
				switch {
				case strings.HasPrefix(script[i:], "/*"):
					depth++
					i += 2
				case strings.HasPrefix(script[i:], "*/"):
					depth--
					i += 2
				default:
					i++
				}
			}
		case script[i] == ';' || script[i] == ' ' || script[i] == '\t' || script[i] == '\n' || script[i] == '\r' || script[i] == '\f':
			i++
		default:
			return true
		}
	}
	return false
}

// ExecuteBatch executes migrations one after another on tx, stopping at the
// first failure.
func (e *Executor) ExecuteBatch(ctx context.Context, tx *database.Handle, migrations []Migration) error {
	for _, m := range migrations {
		if err := e.Execute(ctx, tx, m); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
		}
	}
	return nil
}
