package guard

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrLimitExceeded = errors.New("result limit exceeded")
	ErrExecution     = errors.New("query execution failed")
	ErrNoExecutor    = errors.New("no query executor configured")
	ErrNoSchema      = errors.New("no schema source configured")
)

// LimitError is returned when a caller asks for more rows than allowed.
type LimitError struct {
	Requested int
	Max       int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("max_results cannot exceed %d", e.Max)
}

func (e *LimitError) Unwrap() error {
	return ErrLimitExceeded
}

// ErrorKind classifies a warehouse failure.
type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission_denied"
	KindNotFound         ErrorKind = "not_found"
	KindUnclassified     ErrorKind = "unclassified"
)

const (
	permissionHint = "Permission denied. Please check:\n" +
		"1. Service account has BigQuery User role\n" +
		"2. Service account has access to the dataset\n" +
		"3. Billing is enabled on the project"

	notFoundHint = "Table or dataset not found. Please verify:\n" +
		"1. Table name is correct\n" +
		"2. Dataset exists in the project"
)

// ExecutionError wraps a failure from the Executor with a remediation hint.
// It matches both ErrExecution and the underlying error.
type ExecutionError struct {
	Kind ErrorKind
	Hint string
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Hint == "" {
		return "Query execution error: " + e.Err.Error()
	}
	return e.Hint + "\nOriginal error: " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecution, e.Err}
}

// ClassifyExecutionError inspects googleapi HTTP codes, then gRPC status
// codes, then the error text. A nil error stays nil and an existing
// *ExecutionError is returned unchanged.
func ClassifyExecutionError(err error) *ExecutionError {
	if err == nil {
		return nil
	}

	var existing *ExecutionError
	if errors.As(err, &existing) {
		return existing
	}

	kind := classify(err)
	return &ExecutionError{Kind: kind, Hint: hintFor(kind), Err: err}
}

func hintFor(kind ErrorKind) string {
	switch kind {
	case KindPermissionDenied:
		return permissionHint
	case KindNotFound:
		return notFoundHint
	}
	return ""
}

func classify(err error) ErrorKind {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusForbidden:
			return KindPermissionDenied
		case http.StatusNotFound:
			return KindNotFound
		}
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.PermissionDenied:
			return KindPermissionDenied
		case codes.NotFound:
			return KindNotFound
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "403"),
		strings.Contains(msg, "Permission denied"),
		strings.Contains(msg, "Access Denied"):
		return KindPermissionDenied
	case strings.Contains(msg, "404"),
		strings.Contains(msg, "Not found"):
		return KindNotFound
	}
	return KindUnclassified
}
