package database

import (
	"fmt"
	"strings"
)

// Dialect identifies the SQL engine behind a pool.
type Dialect string

const (
	Postgres Dialect = "postgres"
	DuckDB   Dialect = "duckdb"
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "duckdb":
		return DuckDB, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %q", name)
	}
}

// DefaultSchema is the schema unqualified table names resolve to.
func (d Dialect) DefaultSchema() string {
	if d == DuckDB {
		return "main"
	}
	return "public"
}

// membership renders "column is one of the values bound to placeholder".
func (d Dialect) membership(column, placeholder string) string {
	if d == DuckDB {
		return fmt.Sprintf("list_contains(%s, %s)", placeholder, column)
	}
	return fmt.Sprintf("%s = ANY(%s)", column, placeholder)
}
