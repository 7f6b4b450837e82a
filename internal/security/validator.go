package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNotReadOnly      = errors.New("query is not a SELECT")
	ErrForbiddenKeyword = errors.New("forbidden keyword")
	ErrMultiStatement   = errors.New("multiple statements")
)

// DefaultForbiddenKeywords are the statement keywords that can change data,
// schema or permissions.
var DefaultForbiddenKeywords = []string{
	"DELETE", "UPDATE", "INSERT", "CREATE", "DROP", "ALTER",
	"MERGE", "TRUNCATE", "REPLACE", "GRANT", "REVOKE",
}

// Result is the verdict of one validator. Reason is nil when IsValid.
type Result struct {
	IsValid      bool
	ErrorMessage string
	Reason       error
}

func valid() Result {
	return Result{IsValid: true}
}

func invalid(reason error, msg string) Result {
	return Result{ErrorMessage: msg, Reason: reason}
}

// Validator checks a raw query for one safety property.
type Validator interface {
	Validate(query string) Result
}

// SelectOnlyValidator requires the normalized query to start with SELECT
// followed by whitespace.
type SelectOnlyValidator struct{}

var selectPrefix = regexp.MustCompile(`^SELECT\s`)

func (SelectOnlyValidator) Validate(query string) Result {
	if !selectPrefix.MatchString(strings.ToUpper(Normalize(query))) {
		return invalid(ErrNotReadOnly, "Only SELECT queries are allowed. Query must start with SELECT.")
	}
	return valid()
}

// ForbiddenKeywordValidator rejects a query containing any listed keyword as
// a whole word outside comments and literals.
type ForbiddenKeywordValidator struct {
	keywords []string
	patterns []*regexp.Regexp
}

// NewForbiddenKeywordValidator uses DefaultForbiddenKeywords when none are given.
func NewForbiddenKeywordValidator(keywords ...string) *ForbiddenKeywordValidator {
	if len(keywords) == 0 {
		keywords = DefaultForbiddenKeywords
	}

	v := &ForbiddenKeywordValidator{
		keywords: make([]string, 0, len(keywords)),
		patterns: make([]*regexp.Regexp, 0, len(keywords)),
	}
	for _, kw := range keywords {
		kw = strings.ToUpper(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		v.keywords = append(v.keywords, kw)
		v.patterns = append(v.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return v
}

func (v *ForbiddenKeywordValidator) Validate(query string) Result {
	upper := strings.ToUpper(Normalize(query))
	for i, re := range v.patterns {
		if re.MatchString(upper) {
			return invalid(ErrForbiddenKeyword,
				fmt.Sprintf("Forbidden keyword '%s' detected. Only SELECT queries are allowed.", v.keywords[i]))
		}
	}
	return valid()
}

// MultiStatementValidator allows a single trailing semicolon and nothing more.
type MultiStatementValidator struct{}

func (MultiStatementValidator) Validate(query string) Result {
	body := strings.TrimSuffix(Normalize(query), ";")
	if strings.Contains(body, ";") {
		return invalid(ErrMultiStatement, "Multiple statements not allowed. Only single SELECT queries permitted.")
	}
	return valid()
}

// CompositeValidator runs validators in order and stops at the first failure.
type CompositeValidator struct {
	validators []Validator
}

func NewCompositeValidator(validators ...Validator) *CompositeValidator {
	return &CompositeValidator{validators: validators}
}

// NewDefaultValidator checks SELECT-only, then forbidden keywords, then
// multiple statements.
func NewDefaultValidator() *CompositeValidator {
	return NewCompositeValidator(
		SelectOnlyValidator{},
		NewForbiddenKeywordValidator(),
		MultiStatementValidator{},
	)
}

func (c *CompositeValidator) Validate(query string) Result {
	for _, v := range c.validators {
		if r := v.Validate(query); !r.IsValid {
			return r
		}
	}
	return valid()
}
