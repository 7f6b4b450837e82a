package v1

import (
	"errors"
	"net/http"

	"go-query-gateway/internal/guard"
	"go-query-gateway/internal/response"
)

// OutcomeRecorder counts query outcomes by kind.
type OutcomeRecorder interface {
	RecordOutcome(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string) {}

// statusFor maps a guard error kind to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "not_read_only", "forbidden_keyword", "multi_statement", "limit_exceeded", "invalid_table_id":
		return http.StatusBadRequest
	case "access_denied":
		return http.StatusForbidden
	case string(guard.KindNotFound):
		return http.StatusNotFound
	case string(guard.KindPermissionDenied), string(guard.KindUnclassified):
		return http.StatusBadGateway
	case "unavailable":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeGuardError renders err in the standard envelope. Execution errors
// carry their remediation hint in details.
func writeGuardError(w http.ResponseWriter, err error) string {
	kind := guard.Kind(err)
	details := ""
	var execErr *guard.ExecutionError
	if errors.As(err, &execErr) {
		details = execErr.Hint
	}
	response.ErrorWithCode(w, kind, err.Error(), details, statusFor(kind))
	return kind
}
