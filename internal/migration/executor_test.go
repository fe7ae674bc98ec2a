package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   bool
	}{
		{name: "empty", script: "", want: false},
		{name: "whitespace", script: " \n\t\r\n", want: false},
		{name: "line comment without newline", script: "-- nothing to do yet", want: false},
		{name: "line comments", script: "-- one\n-- two\n", want: false},
		{name: "block comment", script: "/* reserved\n   for later */", want: false},
		{name: "nested block comment", script: "/* outer /* inner */ still outer */", want: false},
		{name: "semicolons only", script: "-- x\n;\n;", want: false},
		{name: "unterminated block comment", script: "/* open", want: false},
		{name: "statement", script: "CREATE TABLE t (id int)", want: true},
		{name: "statement after comments", script: "-- setup\n/* c */\nDROP TABLE t;", want: true},
		{name: "statement after nested comment", script: "/* a /* b */ */ SELECT 1", want: true},
		{name: "comment then statement on one line", script: "/* c */SELECT 1", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasStatements(tt.script))
		})
	}
}
