package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nicepg/internal/database"
	"nicepg/internal/metrics"
)

// ErrVersionChanged is returned by Down when the current version moved
// between choosing the down script and running it.
var ErrVersionChanged = errors.New("schema version changed during rollback")

// Engine is the main migration engine. It keeps no state between calls:
// every operation reads the migration directory and the versions table
// again. Up and Down calls on one Engine never overlap.
type Engine struct {
	db       *database.DB
	scanner  *FileScanner
	executor *Executor
	version  *VersionManager
	logger   *slog.Logger
	metrics  *metrics.Collector
	mu       sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// NewEngine creates a migration engine for the migration files in fsys
// (typically os.DirFS of the migrations directory).
func NewEngine(db *database.DB, fsys fs.FS, opts ...Option) *Engine {
	e := &Engine{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "migration")
	e.scanner = NewFileScanner(fsys)
	e.version = NewVersionManager(db)
	e.executor = NewExecutor(e.scanner, e.version, e.logger)
	return e
}

// Up applies every pending up-migration in ascending version order inside a
// single transaction and returns them. Either all of them are applied and
// recorded or, on the first failure, none are.
func (e *Engine) Up(ctx context.Context) ([]Migration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	startTime := time.Now()
	logger := e.logger.With("run_id", uuid.NewString(), "direction", Up.String())

	if err := e.version.EnsureTable(ctx); err != nil {
		return nil, err
	}

	var (
		applied []Migration
		current int64
	)
	err := e.db.WithTransaction(ctx, func(ctx context.Context, tx *database.Handle) error {
		var err error
		current, err = e.version.Current(ctx, tx)
		if err != nil {
			return err
		}
		pending, err := e.scanner.Pending(current)
		if err != nil {
			return fmt.Errorf("failed to scan migrations: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}

		logger.Info("Found pending migrations", "count", len(pending), "current_version", current)
		if err := e.executor.ExecuteBatch(ctx, tx, pending); err != nil {
			return err
		}
		applied = pending
		return nil
	})
	if err != nil {
		e.metrics.ObserveBatch(Up.String(), 0, time.Since(startTime), err)
		logger.Error("Migration failed, transaction rolled back", "error", err)
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	e.metrics.ObserveBatch(Up.String(), len(applied), time.Since(startTime), nil)

	if len(applied) == 0 {
		logger.Info("No pending migrations", "current_version", current)
		e.metrics.SetVersion(current)
		return applied, nil
	}

	current = applied[len(applied)-1].Version
	e.metrics.SetVersion(current)
	logger.Info("All migrations completed successfully",
		"applied", len(applied), "current_version", current, "duration", time.Since(startTime))
	return applied, nil
}

// Down rolls back the current version by running its down-migration and
// removing its version row in one transaction, and returns the migration it
// ran. It is a no-op (nil, nil) when nothing has been applied or when the
// current version has no down script.
func (e *Engine) Down(ctx context.Context) (*Migration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	startTime := time.Now()
	logger := e.logger.With("run_id", uuid.NewString(), "direction", Down.String())

	if err := e.version.EnsureTable(ctx); err != nil {
		return nil, err
	}

	current, err := e.version.Current(ctx, e.db.Handle)
	if err != nil {
		return nil, err
	}
	if current == 0 {
		logger.Info("No migrations to roll back")
		return nil, nil
	}

	m, err := e.scanner.Find(current, Down)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}
	if m == nil {
		logger.Warn("No down migration for current version, nothing rolled back", "current_version", current)
		return nil, nil
	}

	logger.Info("Rolling back", "version", m.Version, "file", m.FileName)
	err = e.db.WithTransaction(ctx, func(ctx context.Context, tx *database.Handle) error {
		v, err := e.version.Current(ctx, tx)
		if err != nil {
			return err
		}
		if v != current {
			return fmt.Errorf("%w: expected %d, found %d", ErrVersionChanged, current, v)
		}
		return e.executor.Execute(ctx, tx, *m)
	})
	if err != nil {
		e.metrics.ObserveBatch(Down.String(), 0, time.Since(startTime), err)
		logger.Error("Rollback failed, transaction rolled back", "version", m.Version, "error", err)
		return nil, fmt.Errorf("rollback failed: %w", err)
	}
	e.metrics.ObserveBatch(Down.String(), 1, time.Since(startTime), nil)

	if next, err := e.version.Current(ctx, e.db.Handle); err == nil {
		e.metrics.SetVersion(next)
		logger.Info("Rollback completed successfully", "current_version", next, "duration", time.Since(startTime))
	} else {
		logger.Warn("Rollback completed, reading the new version failed", "error", err)
	}
	return m, nil
}

// CurrentVersion returns the highest applied version, 0 when nothing has
// been applied or the versions table does not exist yet.
func (e *Engine) CurrentVersion(ctx context.Context) (int64, error) {
	exists, err := e.version.Exists(ctx)
	if err != nil || !exists {
		return 0, err
	}
	return e.version.Current(ctx, e.db.Handle)
}

// Status returns the current migration status. It does not create the
// versions table.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	available, err := e.scanner.List(Up)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	status := &Status{
		Applied:        []VersionRecord{},
		Pending:        []Migration{},
		TotalAvailable: len(available),
	}

	exists, err := e.version.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		if status.CurrentVersion, err = e.version.Current(ctx, e.db.Handle); err != nil {
			return nil, err
		}
		if status.Applied, err = e.version.Applied(ctx, e.db.Handle); err != nil {
			return nil, err
		}
	}

	for _, m := range available {
		if m.Version > status.CurrentVersion {
			status.Pending = append(status.Pending, m)
		}
	}

	if status.CurrentVersion > 0 {
		down, err := e.scanner.Find(status.CurrentVersion, Down)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migrations: %w", err)
		}
		status.CanRollback = down != nil
	}

	e.metrics.SetVersion(status.CurrentVersion)
	return status, nil
}

// Status represents the migration status
type Status struct {
	CurrentVersion int64           `json:"current_version"`
	Applied        []VersionRecord `json:"applied"`
	Pending        []Migration     `json:"pending"`
	TotalAvailable int             `json:"total_available"`
	CanRollback    bool            `json:"can_rollback"`
}
