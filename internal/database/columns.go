package database

import (
	"errors"
	"fmt"
)

// ErrUnknownAttribute is returned by MapToColumns for an attribute missing
// from the mapping.
var ErrUnknownAttribute = errors.New("unknown attribute")

// MapToColumns renames attribute keys to column names using mapping
// (attribute -> column). It fails on the first attribute the mapping does
// not know.
func MapToColumns(attrs map[string]any, mapping map[string]string) (Values, error) {
	values := make(Values, len(attrs))
	for attr, v := range attrs {
		column, ok := mapping[attr]
		if !ok || column == "" {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, attr)
		}
		values[column] = v
	}
	return values, nil
}

// MapFromColumns builds an attribute map from a row using mapping
// (attribute -> column). Every mapped attribute is present in the result,
// nil when the row lacks the column.
func MapFromColumns(row Row, mapping map[string]string) map[string]any {
	attrs := make(map[string]any, len(mapping))
	if row == nil {
		return attrs
	}
	for attr, column := range mapping {
		attrs[attr] = row[column]
	}
	return attrs
}
