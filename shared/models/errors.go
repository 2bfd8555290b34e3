package models

import "errors"

// Lookup errors. An entity owned by another user is reported exactly like a
// missing one.
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTagNotFound  = errors.New("tag not found")
)

// ErrUnauthorized is returned when a credential is missing, expired or invalid.
var ErrUnauthorized = errors.New("unauthorized")

// ValidationError reports a field-level constraint violation.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
