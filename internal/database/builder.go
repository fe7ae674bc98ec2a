package database

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Row is a result row keyed by column name.
type Row map[string]any

// Values maps column names to the values written by Insert and Update.
type Values map[string]any

// Condition maps column names to the values a row must match. Slice values
// match any element of the slice. All entries are ANDed together.
type Condition map[string]any

// ErrNoValues is returned when an INSERT or UPDATE has no columns to write.
var ErrNoValues = errors.New("no column values given")

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		return rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	default:
		return false
	}
}

// buildCondition renders a WHERE clause whose placeholders start after offset.
// An empty condition renders as the empty string.
func buildCondition(d Dialect, cond Condition, offset int) (string, []any) {
	if len(cond) == 0 {
		return "", nil
	}
	keys := sortedKeys(cond)
	parts := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, key := range keys {
		value := cond[key]
		ph := placeholder(offset + i + 1)
		if isList(value) {
			parts = append(parts, d.membership(key, ph))
		} else {
			parts = append(parts, fmt.Sprintf("%s = %s", key, ph))
		}
		args = append(args, value)
	}
	return "WHERE " + strings.Join(parts, " AND "), args
}

func joinClauses(parts ...string) string {
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

func buildSelect(d Dialect, table string, cond Condition) (string, []any) {
	where, args := buildCondition(d, cond, 0)
	return joinClauses("SELECT * FROM "+table, where), args
}

func buildInsert(table string, values Values, returning []string) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("insert into %s: %w", table, ErrNoValues)
	}
	columns := sortedKeys(values)
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, column := range columns {
		placeholders[i] = placeholder(i + 1)
		args[i] = values[column]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if len(returning) > 0 {
		query += " RETURNING " + strings.Join(returning, ", ")
	}
	return query, args, nil
}

func buildUpdate(d Dialect, table string, values Values, cond Condition) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("update %s: %w", table, ErrNoValues)
	}
	columns := sortedKeys(values)
	sets := make([]string, len(columns))
	args := make([]any, 0, len(columns)+len(cond))
	for i, column := range columns {
		sets[i] = fmt.Sprintf("%s = %s", column, placeholder(i+1))
		args = append(args, values[column])
	}
	where, condArgs := buildCondition(d, cond, len(columns))
	args = append(args, condArgs...)
	return joinClauses("UPDATE "+table+" SET "+strings.Join(sets, ", "), where), args, nil
}

func buildDelete(d Dialect, table string, cond Condition) (string, []any) {
	where, args := buildCondition(d, cond, 0)
	return joinClauses("DELETE FROM "+table, where), args
}
