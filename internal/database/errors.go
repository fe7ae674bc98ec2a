package database

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	duckdb "github.com/marcboeker/go-duckdb/v2"
)

// uniqueViolationCode is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolationCode = "23505"

// ErrUniqueViolation matches every *UniqueIndexError via errors.Is.
var ErrUniqueViolation = errors.New("unique constraint violation")

// UniqueIndexError reports a write rejected by a unique index.
type UniqueIndexError struct {
	Table      string
	Constraint string
	Columns    []string
	Detail     string
	Err        error
}

func (e *UniqueIndexError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "duplicate key in " + e.Table
}

func (e *UniqueIndexError) Unwrap() error { return e.Err }

func (e *UniqueIndexError) Is(target error) bool { return target == ErrUniqueViolation }

// Postgres: Key (customer_id, display_name)=(cus_1, sub1) already exists.
var pgKeyDetail = regexp.MustCompile(`^Key \(([^)]*)\)=`)

// DuckDB outside a transaction:
// Duplicate key "customer_id: cus_1, display_name: sub1" violates unique constraint.
var duckKeyDetail = regexp.MustCompile(`Duplicate key "(.*?)" violates (?:unique|primary key) constraint`)

// DuckDB inside a transaction, which names the value only:
// PRIMARY KEY or UNIQUE constraint violation: duplicate key "7"
var duckTxKeyDetail = regexp.MustCompile(`(?i)duplicate key "(.*?)"`)

func parsePostgresColumns(detail string) []string {
	m := pgKeyDetail.FindStringSubmatch(detail)
	if m == nil {
		return nil
	}
	return splitColumns(m[1])
}

func parseDuckDBColumns(message string) []string {
	m := duckKeyDetail.FindStringSubmatch(message)
	if m == nil {
		return nil
	}
	var columns []string
	for _, pair := range strings.Split(m[1], ", ") {
		name, _, _ := strings.Cut(pair, ": ")
		if name = strings.TrimSpace(name); name != "" {
			columns = append(columns, name)
		}
	}
	return columns
}

func splitColumns(raw string) []string {
	var columns []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			columns = append(columns, c)
		}
	}
	return columns
}

// translateError turns engine specific unique violations into
// *UniqueIndexError. table and written are the table and columns the
// statement wrote to, used when the engine does not name them. Other errors
// are returned unchanged.
func translateError(d Dialect, err error, table string, written []string) error {
	if err == nil {
		return nil
	}
	switch d {
	case Postgres:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			t := pgErr.TableName
			if t == "" {
				t = table
			}
			return &UniqueIndexError{
				Table:      t,
				Constraint: pgErr.ConstraintName,
				Columns:    parsePostgresColumns(pgErr.Detail),
				Detail:     pgErr.Detail,
				Err:        err,
			}
		}
	case DuckDB:
		var duckErr *duckdb.Error
		if errors.As(err, &duckErr) && duckErr.Type != duckdb.ErrorTypeConstraint {
			return err
		}
		msg := err.Error()
		if !duckTxKeyDetail.MatchString(msg) {
			return err
		}
		columns := parseDuckDBColumns(msg)
		if len(columns) == 0 && len(written) > 0 {
			columns = append([]string(nil), written...)
		}
		return &UniqueIndexError{
			Table:   table,
			Columns: columns,
			Detail:  msg,
			Err:     err,
		}
	}
	return err
}
