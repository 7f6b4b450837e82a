// Package security checks that a query is a single read-only SELECT before
// it reaches BigQuery.
//
// Checks are lexical: comments and string literals are stripped by
// Normalize, then each Validator inspects what remains. Nothing here parses
// SQL.
package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ValidationError carries the first failed check. It unwraps to one of
// ErrNotReadOnly, ErrForbiddenKeyword or ErrMultiStatement.
type ValidationError struct {
	Reason  error
	Message string
}

func (e *ValidationError) Error() string {
	return "Query validation failed: " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

// QueryValidator is the entry point used by the request pipeline.
type QueryValidator struct {
	validator Validator
}

// NewQueryValidator wraps v, or the default chain when v is nil.
func NewQueryValidator(v Validator) *QueryValidator {
	if v == nil {
		v = NewDefaultValidator()
	}
	return &QueryValidator{validator: v}
}

// Validate returns the first failing check, or a valid Result.
func (q *QueryValidator) Validate(query string) Result {
	return q.validator.Validate(query)
}

// Check returns a *ValidationError for an unsafe query.
func (q *QueryValidator) Check(query string) error {
	r := q.validator.Validate(query)
	if r.IsValid {
		return nil
	}
	return &ValidationError{Reason: r.Reason, Message: r.ErrorMessage}
}

// ErrInvalidTableID marks a table identifier that cannot name a table.
var ErrInvalidTableID = errors.New("invalid table id")

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)

// ValidateTableID accepts a dotted table identifier, optionally wrapped in
// backticks, and returns it unwrapped. Table ids that arrive outside a query,
// such as schema lookups, go through it before the policy check.
func ValidateTableID(id string) (string, error) {
	id = strings.TrimSpace(strings.Trim(strings.TrimSpace(id), "`"))
	if id == "" {
		return "", fmt.Errorf("%w: table id is required", ErrInvalidTableID)
	}
	if !identifierPattern.MatchString(id) {
		return "", fmt.Errorf("%w: '%s'", ErrInvalidTableID, id)
	}
	return id, nil
}
