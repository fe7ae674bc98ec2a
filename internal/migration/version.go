package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"nicepg/internal/database"
)

// VersionManager reads and writes the versions table.
type VersionManager struct {
	db    *database.DB
	table string
}

// NewVersionManager creates a new version manager
func NewVersionManager(db *database.DB) *VersionManager {
	return &VersionManager{db: db, table: VersionsTable}
}

// Exists reports whether the versions table is present in the default schema.
func (vm *VersionManager) Exists(ctx context.Context) (bool, error) {
	row, err := vm.db.FindOne(ctx, "information_schema.tables", database.Condition{
		"table_schema": vm.db.Dialect().DefaultSchema(),
		"table_name":   vm.table,
	})
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", vm.table, err)
	}
	return row != nil, nil
}

// EnsureTable creates the versions table unless it already exists.
func (vm *VersionManager) EnsureTable(ctx context.Context) error {
	exists, err := vm.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = vm.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE %s (
			version int unique,
			timestamp timestamptz default now()
		)
	`, vm.table))
	if err != nil {
		return fmt.Errorf("failed to create %s table: %w", vm.table, err)
	}
	return nil
}

// Current returns the highest recorded version, or 0 when nothing has been
// applied.
func (vm *VersionManager) Current(ctx context.Context, h *database.Handle) (int64, error) {
	rows, err := h.Query(ctx, fmt.Sprintf(`SELECT max(version) AS version FROM %s`, vm.table))
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	if len(rows) == 0 || rows[0]["version"] == nil {
		return 0, nil
	}
	v, err := cast.ToInt64E(rows[0]["version"])
	if err != nil {
		return 0, fmt.Errorf("failed to read current version: %w", err)
	}
	return v, nil
}

// Applied returns every recorded version in ascending order.
func (vm *VersionManager) Applied(ctx context.Context, h *database.Handle) ([]VersionRecord, error) {
	rows, err := h.Query(ctx, fmt.Sprintf(`SELECT version, "timestamp" FROM %s ORDER BY version ASC`, vm.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}

	records := make([]VersionRecord, 0, len(rows))
	for _, row := range rows {
		v, err := cast.ToInt64E(row["version"])
		if err != nil {
			return nil, fmt.Errorf("failed to read version: %w", err)
		}
		var at time.Time
		if row["timestamp"] != nil {
			if at, err = cast.ToTimeE(row["timestamp"]); err != nil {
				return nil, fmt.Errorf("failed to read timestamp of version %d: %w", v, err)
			}
		}
		records = append(records, VersionRecord{Version: v, AppliedAt: at})
	}
	return records, nil
}

// Record inserts a version row. Recording a version twice fails with a
// *database.UniqueIndexError.
func (vm *VersionManager) Record(ctx context.Context, h *database.Handle, version int64) error {
	if _, err := h.Insert(ctx, vm.table, database.Values{"version": version}); err != nil {
		return fmt.Errorf("failed to record version %d: %w", version, err)
	}
	return nil
}

// Remove deletes the row of a version.
func (vm *VersionManager) Remove(ctx context.Context, h *database.Handle, version int64) error {
	if _, err := h.Delete(ctx, vm.table, database.Condition{"version": version}); err != nil {
		return fmt.Errorf("failed to remove version %d: %w", version, err)
	}
	return nil
}
