package domain

import (
	"errors"
	"fmt"
	"time"
)

// LabError represents a standardized error response
type LabError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	cause     error
}

// Error implements the error interface
func (e *LabError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel the error was built from.
func (e *LabError) Unwrap() error {
	return e.cause
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput    = "INVALID_INPUT"
	ErrInvalidMutation = "INVALID_MUTATION"
	ErrNotFoundCode    = "NOT_FOUND"
	ErrInvalidArchive  = "INVALID_ARCHIVE"
	ErrStorage         = "STORAGE_ERROR"
	ErrAIUnavailable   = "AI_UNAVAILABLE"
	ErrAuthentication  = "AUTHENTICATION_ERROR"
	ErrConflict        = "CONFLICT"
	ErrInternalServer  = "INTERNAL_SERVER_ERROR"
	ErrValidation      = "VALIDATION_ERROR"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrUnknownTest       = errors.New("unknown test definition")
	ErrIndexOutOfRange   = errors.New("entry index out of range")
	ErrArchiveInvalid    = errors.New("invalid archive")
	ErrInsightInFlight   = errors.New("insight request already in flight")
	ErrInsightFailed     = errors.New("insight generation failed")
	ErrInvalidCredential = errors.New("invalid credentials")
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewLabError creates a new LabError with timestamp
func NewLabError(code, message, details, requestID string) *LabError {
	return &LabError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// WrapLabError builds a LabError around an underlying failure. The cause is
// reachable with errors.Is and errors.As.
func WrapLabError(code, message string, cause error) *LabError {
	le := NewLabError(code, message, "", "")
	if cause != nil {
		le.Details = cause.Error()
		le.cause = cause
	}
	return le
}

// newMutationError wraps a sentinel so that both errors.Is and errors.As work.
func newMutationError(sentinel error, details string) *LabError {
	return &LabError{
		Code:      ErrInvalidMutation,
		Message:   sentinel.Error(),
		Details:   details,
		Timestamp: time.Now().UTC(),
		cause:     sentinel,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// CodeOf returns the LabError code carried by err, or an empty string.
func CodeOf(err error) string {
	var le *LabError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
