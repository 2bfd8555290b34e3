// Package shared holds HTTP helpers used by the services.
package shared

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

var statusCodes = map[int]string{
	http.StatusBadRequest:            "BAD_REQUEST",
	http.StatusUnauthorized:          "UNAUTHORIZED",
	http.StatusNotFound:              "NOT_FOUND",
	http.StatusMethodNotAllowed:      "METHOD_NOT_ALLOWED",
	http.StatusRequestEntityTooLarge: "PAYLOAD_TOO_LARGE",
	http.StatusUnprocessableEntity:   "VALIDATION_ERROR",
	http.StatusTooManyRequests:       "RATE_LIMITED",
	http.StatusInternalServerError:   "INTERNAL_ERROR",
}

// SendError writes a JSON error with the default code for status.
func SendError(w http.ResponseWriter, message string, status int) {
	code, ok := statusCodes[status]
	if !ok {
		code = http.StatusText(status)
	}
	SendJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// SendErrorCode writes a JSON error with an explicit code and optional field.
func SendErrorCode(w http.ResponseWriter, status int, code, field, message string) {
	SendJSON(w, status, ErrorResponse{Error: message, Code: code, Field: field})
}

func SendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", "err", err)
	}
}
