package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateError_Postgres(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		Message:        `duplicate key value violates unique constraint "subscriptions_customer_id_display_name_key"`,
		Detail:         "Key (customer_id, display_name)=(cus_JOgWoKqN6pizGN, sub1) already exists.",
		TableName:      "subscriptions",
		ConstraintName: "subscriptions_customer_id_display_name_key",
	}

	err := translateError(Postgres, fmt.Errorf("exec: %w", pgErr), "ignored", nil)

	var uniqueErr *UniqueIndexError
	require.True(t, errors.As(err, &uniqueErr))
	assert.Equal(t, "subscriptions", uniqueErr.Table)
	assert.Equal(t, "subscriptions_customer_id_display_name_key", uniqueErr.Constraint)
	assert.Equal(t, []string{"customer_id", "display_name"}, uniqueErr.Columns)
	assert.Equal(t, pgErr.Detail, uniqueErr.Error())
	assert.ErrorIs(t, err, ErrUniqueViolation)

	var unwrapped *pgconn.PgError
	assert.True(t, errors.As(err, &unwrapped), "original error stays reachable")
}

func TestTranslateError_PostgresSingleColumn(t *testing.T) {
	err := translateError(Postgres, &pgconn.PgError{
		Code:   "23505",
		Detail: "Key (email)=(valentin@example.com) already exists.",
	}, "users", nil)

	var uniqueErr *UniqueIndexError
	require.True(t, errors.As(err, &uniqueErr))
	assert.Equal(t, "users", uniqueErr.Table, "falls back to the written table")
	assert.Equal(t, []string{"email"}, uniqueErr.Columns)
}

func TestTranslateError_PassThrough(t *testing.T) {
	syntax := &pgconn.PgError{Code: "42601", Message: "syntax error"}
	assert.Same(t, error(syntax), translateError(Postgres, syntax, "t", nil))

	plain := errors.New("connection reset")
	assert.Same(t, plain, translateError(Postgres, plain, "t", nil))
	assert.Same(t, plain, translateError(DuckDB, plain, "t", nil))

	assert.NoError(t, translateError(Postgres, nil, "t", nil))
}

func TestTranslateError_DuckDBMessage(t *testing.T) {
	raw := errors.New(`Constraint Error: Duplicate key "version: 7" violates unique constraint.`)

	err := translateError(DuckDB, raw, "db_versions", []string{"ignored"})

	var uniqueErr *UniqueIndexError
	require.True(t, errors.As(err, &uniqueErr))
	assert.Equal(t, "db_versions", uniqueErr.Table)
	assert.Equal(t, []string{"version"}, uniqueErr.Columns)
	assert.Empty(t, uniqueErr.Constraint)
	assert.ErrorIs(t, err, raw)
}

func TestTranslateError_DuckDBTransactionMessage(t *testing.T) {
	raw := errors.New(`Constraint Error: PRIMARY KEY or UNIQUE constraint violation: duplicate key "7"`)

	err := translateError(DuckDB, raw, "db_versions", []string{"version"})

	var uniqueErr *UniqueIndexError
	require.True(t, errors.As(err, &uniqueErr))
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Equal(t, "db_versions", uniqueErr.Table)
	assert.Equal(t, []string{"version"}, uniqueErr.Columns, "falls back to the written columns")
	assert.ErrorIs(t, err, raw)
}

func TestParseDuckDBColumns(t *testing.T) {
	cols := parseDuckDBColumns(`Constraint Error: Duplicate key "customer_id: cus_1, display_name: sub1" violates primary key constraint.`)
	assert.Equal(t, []string{"customer_id", "display_name"}, cols)

	assert.Nil(t, parseDuckDBColumns("Constraint Error: NOT NULL constraint failed: users.email"))
}

func TestParsePostgresColumns(t *testing.T) {
	assert.Equal(t, []string{"email"}, parsePostgresColumns("Key (email)=(a@b.c) already exists."))
	assert.Nil(t, parsePostgresColumns("something else"))
}
