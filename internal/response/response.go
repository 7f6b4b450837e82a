package response

import (
	"encoding/json"
	"net/http"
	"strings"
)

// StandardResponse represents the standard API response format
type StandardResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorInfo contains error details. Code is a machine-readable kind such as
// "access_denied"; it defaults to the snake-cased HTTP status text.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Meta carries request metadata
type Meta struct {
	Total     int    `json:"total,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// Success sends a successful response
func Success(w http.ResponseWriter, data interface{}, meta *Meta) {
	JSON(w, http.StatusOK, StandardResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

// Error sends an error response
func Error(w http.ResponseWriter, message string, statusCode int) {
	ErrorWithCode(w, "", message, "", statusCode)
}

// ErrorWithDetails sends an error response with additional details
func ErrorWithDetails(w http.ResponseWriter, message string, details string, statusCode int) {
	ErrorWithCode(w, "", message, details, statusCode)
}

// ErrorWithCode sends an error response with an explicit error code
func ErrorWithCode(w http.ResponseWriter, code, message, details string, statusCode int) {
	if code == "" {
		code = codeFromStatus(statusCode)
	}
	JSON(w, statusCode, StandardResponse{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func codeFromStatus(statusCode int) string {
	text := http.StatusText(statusCode)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
