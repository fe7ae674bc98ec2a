package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCondition(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		cond     Condition
		offset   int
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "empty",
			dialect: Postgres,
			cond:    Condition{},
			wantSQL: "",
		},
		{
			name:     "keys sorted and ANDed",
			dialect:  Postgres,
			cond:     Condition{"table_schema": "public", "table_name": "db_versions"},
			wantSQL:  "WHERE table_name = $1 AND table_schema = $2",
			wantArgs: []any{"db_versions", "public"},
		},
		{
			name:     "postgres set membership",
			dialect:  Postgres,
			cond:     Condition{"id": []int{1, 2}, "status": "active"},
			wantSQL:  "WHERE id = ANY($1) AND status = $2",
			wantArgs: []any{[]int{1, 2}, "active"},
		},
		{
			name:     "duckdb set membership",
			dialect:  DuckDB,
			cond:     Condition{"id": []string{"a"}},
			wantSQL:  "WHERE list_contains($1, id)",
			wantArgs: []any{[]string{"a"}},
		},
		{
			name:     "bytes are a scalar",
			dialect:  Postgres,
			cond:     Condition{"hash": []byte("x")},
			wantSQL:  "WHERE hash = $1",
			wantArgs: []any{[]byte("x")},
		},
		{
			name:     "offset numbering",
			dialect:  Postgres,
			cond:     Condition{"id": 7},
			offset:   2,
			wantSQL:  "WHERE id = $3",
			wantArgs: []any{7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildCondition(tt.dialect, tt.cond, tt.offset)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildSelect(t *testing.T) {
	sql, args := buildSelect(Postgres, "users", nil)
	assert.Equal(t, "SELECT * FROM users", sql)
	assert.Empty(t, args)

	sql, args = buildSelect(Postgres, "users", Condition{"email": "a@example.com"})
	assert.Equal(t, "SELECT * FROM users WHERE email = $1", sql)
	assert.Equal(t, []any{"a@example.com"}, args)
}

func TestBuildInsert(t *testing.T) {
	sql, args, err := buildInsert("db_versions", Values{"version": int64(3)}, nil)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO db_versions (version) VALUES ($1)", sql)
	assert.Equal(t, []any{int64(3)}, args)

	sql, args, err = buildInsert("users", Values{"name": "Ann", "email": "ann@example.com"}, []string{"id", "email"})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO users (email, name) VALUES ($1, $2) RETURNING id, email", sql)
	assert.Equal(t, []any{"ann@example.com", "Ann"}, args)

	_, _, err = buildInsert("users", Values{}, nil)
	assert.ErrorIs(t, err, ErrNoValues)
}

func TestBuildUpdate(t *testing.T) {
	sql, args, err := buildUpdate(Postgres, "users",
		Values{"name": "Bob", "active": true},
		Condition{"id": []int{1, 2}, "org": "acme"})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE users SET active = $1, name = $2 WHERE id = ANY($3) AND org = $4", sql)
	assert.Equal(t, []any{true, "Bob", []int{1, 2}, "acme"}, args)

	sql, _, err = buildUpdate(Postgres, "users", Values{"active": false}, nil)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE users SET active = $1", sql)

	_, _, err = buildUpdate(Postgres, "users", nil, Condition{"id": 1})
	assert.ErrorIs(t, err, ErrNoValues)
}

func TestBuildDelete(t *testing.T) {
	sql, args := buildDelete(Postgres, "db_versions", Condition{"version": int64(5)})
	assert.Equal(t, "DELETE FROM db_versions WHERE version = $1", sql)
	assert.Equal(t, []any{int64(5)}, args)
}

func TestParseDialect(t *testing.T) {
	for _, name := range []string{"", "postgres", "PostgreSQL", "pgx"} {
		d, err := ParseDialect(name)
		require.NoError(t, err, name)
		assert.Equal(t, Postgres, d)
		assert.Equal(t, "public", d.DefaultSchema())
	}

	d, err := ParseDialect("duckdb")
	require.NoError(t, err)
	assert.Equal(t, "main", d.DefaultSchema())

	_, err = ParseDialect("oracle")
	assert.Error(t, err)
}
