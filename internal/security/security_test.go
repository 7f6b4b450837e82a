package security

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"collapses whitespace", "SELECT  a\n\tFROM   t  ", "SELECT a FROM t"},
		{"block comment", "SELECT/*x*/1", "SELECT 1"},
		{"multi-line block comment", "SELECT 1 /* DROP\nTABLE */ FROM t", "SELECT 1 FROM t"},
		{"line comment ends at newline", "SELECT 1 -- tail\nFROM t", "SELECT 1 FROM t"},
		{"line comment at end", "SELECT 1 -- DROP TABLE x", "SELECT 1"},
		{"single quoted literal", "SELECT * FROM t WHERE n = 'DELETE'", "SELECT * FROM t WHERE n ="},
		{"doubled quote escape", "SELECT 'it''s' FROM t", "SELECT FROM t"},
		{"backslash escape", `SELECT 'it\'s;' FROM t`, "SELECT FROM t"},
		{"escaped backslash ends literal", `SELECT 'a\\' FROM t`, "SELECT FROM t"},
		{"backtick identifier kept", "SELECT `a'b` FROM `p.d.t`", "SELECT `a'b` FROM `p.d.t`"},
		{"unterminated backtick kept", "SELECT `a", "SELECT `a"},
		{"double quoted literal", `SELECT "a;b" FROM t`, "SELECT FROM t"},
		{"comment marker inside literal", "SELECT 'a--b', c -- tail\nFROM t", "SELECT , c FROM t"},
		{"quote inside comment", "SELECT 1 /* it's */ FROM t WHERE x = ';'", "SELECT 1 FROM t WHERE x ="},
		{"unterminated block comment kept", "SELECT 1 /* open", "SELECT 1 /* open"},
		{"unterminated literal kept", "SELECT 'open", "SELECT 'open"},
		{"empty", "", ""},
		{"only a comment", "-- nothing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.query))
		})
	}
}

func TestDefaultValidator(t *testing.T) {
	tests := []struct {
		query  string
		valid  bool
		reason error
	}{
		{"SELECT * FROM table", true, nil},
		{"select name, age from users", true, nil},
		{"SELECT * FROM table WHERE name = 'DELETE'", true, nil},
		{"SELECT * FROM table -- comment", true, nil},
		{"SELECT * FROM table;", true, nil},
		{"SELECT * FROM table /* DROP TABLE */ WHERE 1=1", true, nil},
		{"  \n select\n*\nfrom t", true, nil},
		{"SELECT created_at, updated_by FROM t", true, nil},

		{"DELETE FROM table", false, ErrNotReadOnly},
		{"INSERT INTO table VALUES (1)", false, ErrNotReadOnly},
		{"UPDATE table SET x=1", false, ErrNotReadOnly},
		{"DROP TABLE users", false, ErrNotReadOnly},
		{"CREATE TABLE new_table AS SELECT * FROM old", false, ErrNotReadOnly},
		{"WITH x AS (SELECT 1) SELECT * FROM x", false, ErrNotReadOnly},
		{"SELECT", false, ErrNotReadOnly},
		{"", false, ErrNotReadOnly},

		{"SELECT * FROM table; DROP TABLE users;", false, ErrForbiddenKeyword},
		{"SELECT * FROM table WHERE 1=1; DELETE FROM users", false, ErrForbiddenKeyword},
		{"SELECT * FROM users; /* */ DROP TABLE users", false, ErrForbiddenKeyword},
		{"SELECT 1 -- x\n; DROP TABLE t", false, ErrForbiddenKeyword},
		{"SELECT REPLACE(name, 'a', 'b') FROM t", false, ErrForbiddenKeyword},
		{`SELECT 'x\''; DELETE FROM d.t WHERE '1'='1'`, false, ErrForbiddenKeyword},
		{"SELECT 1 AS `a'b`; DROP TABLE d.t; SELECT 'c'", false, ErrForbiddenKeyword},

		{"SELECT 1; SELECT 2", false, ErrMultiStatement},
		{"SELECT 1;;", false, ErrMultiStatement},
	}

	v := NewDefaultValidator()
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := v.Validate(tt.query)
			assert.Equal(t, tt.valid, r.IsValid)
			if tt.valid {
				assert.Empty(t, r.ErrorMessage)
				assert.Nil(t, r.Reason)
				return
			}
			assert.ErrorIs(t, r.Reason, tt.reason)
			assert.NotEmpty(t, r.ErrorMessage)
		})
	}
}

func TestForbiddenKeywordValidator_Message(t *testing.T) {
	r := NewForbiddenKeywordValidator().Validate("SELECT * FROM t WHERE EXISTS (SELECT 1); TRUNCATE t")
	require.False(t, r.IsValid)
	assert.Equal(t, "Forbidden keyword 'TRUNCATE' detected. Only SELECT queries are allowed.", r.ErrorMessage)
}

func TestForbiddenKeywordValidator_CustomKeywords(t *testing.T) {
	v := NewForbiddenKeywordValidator("export", " ", "Call")
	assert.Equal(t, []string{"EXPORT", "CALL"}, v.keywords)

	assert.True(t, v.Validate("SELECT * FROM t WHERE x = 'DELETE'").IsValid)
	assert.False(t, v.Validate("SELECT 1; CALL proc()").IsValid)
	assert.Equal(t, DefaultForbiddenKeywords, NewForbiddenKeywordValidator().keywords)
}

func TestSelectOnlyValidator_Message(t *testing.T) {
	r := SelectOnlyValidator{}.Validate("/* lead */ SHOW TABLES")
	require.False(t, r.IsValid)
	assert.Equal(t, "Only SELECT queries are allowed. Query must start with SELECT.", r.ErrorMessage)

	assert.True(t, SelectOnlyValidator{}.Validate("/* lead */ SELECT 1").IsValid)
}

func TestMultiStatementValidator(t *testing.T) {
	v := MultiStatementValidator{}

	assert.True(t, v.Validate("SELECT 1").IsValid)
	assert.True(t, v.Validate("SELECT 1 ;  ").IsValid)
	assert.True(t, v.Validate("SELECT ';' AS s").IsValid)
	assert.True(t, v.Validate("SELECT 1 /* ; */").IsValid)

	r := v.Validate("SELECT 1; SELECT 2")
	require.False(t, r.IsValid)
	assert.Equal(t, "Multiple statements not allowed. Only single SELECT queries permitted.", r.ErrorMessage)
}

func TestCompositeValidator_FirstFailureWins(t *testing.T) {
	var calls []string
	record := func(name string, ok bool) Validator {
		return validatorFunc(func(string) Result {
			calls = append(calls, name)
			if ok {
				return valid()
			}
			return invalid(errors.New(name), name+" failed")
		})
	}

	c := NewCompositeValidator(record("a", true), record("b", false), record("c", false))
	r := c.Validate("SELECT 1")

	assert.False(t, r.IsValid)
	assert.Equal(t, "b failed", r.ErrorMessage)
	assert.Equal(t, []string{"a", "b"}, calls)

	assert.True(t, NewCompositeValidator().Validate("anything").IsValid)
}

func TestQueryValidator(t *testing.T) {
	q := NewQueryValidator(nil)

	assert.True(t, q.Validate("SELECT 1").IsValid)
	r := q.Validate("DROP TABLE t")
	assert.False(t, r.IsValid)
	assert.Contains(t, r.ErrorMessage, "Only SELECT")

	assert.NoError(t, q.Check("SELECT 1"))

	err := q.Check("SELECT 1; SELECT 2")
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrMultiStatement)
	assert.Equal(t, "Query validation failed: Multiple statements not allowed. Only single SELECT queries permitted.", err.Error())
}

func TestValidateTableID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"proj.ds.tbl", "proj.ds.tbl", false},
		{"`bigquery-public-data.austin_bikeshare.trips`", "bigquery-public-data.austin_bikeshare.trips", false},
		{"  ds.tbl ", "ds.tbl", false},
		{"", "", true},
		{"``", "", true},
		{"ds.tbl; DROP", "", true},
		{"ds/tbl", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ValidateTableID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTableID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type validatorFunc func(string) Result

func (f validatorFunc) Validate(q string) Result { return f(q) }
