package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestLabError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Invalid input",
			code:      ErrInvalidInput,
			message:   "Unknown species",
			details:   "species must be one of the configured values",
			requestID: "req-123",
		},
		{
			name:      "Storage error",
			code:      ErrStorage,
			message:   "Could not persist reports",
			details:   "database is locked",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLabError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}

			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}

			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestMutationErrorUnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("adding entry: %w", newMutationError(ErrUnknownCategory, "serology"))

	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("Expected errors.Is to match ErrUnknownCategory")
	}
	if errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Did not expect errors.Is to match ErrIndexOutOfRange")
	}
	if got := CodeOf(err); got != ErrInvalidMutation {
		t.Errorf("Expected code %s, got %s", ErrInvalidMutation, got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("Expected empty code for plain error, got %s", got)
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "species",
			message: "Invalid species",
			value:   "Dragon",
		},
		{
			name:    "Integer validation error",
			field:   "index",
			message: "Must not be negative",
			value:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestErrorConstants(t *testing.T) {
	constants := map[string]string{
		"ErrInvalidInput":    ErrInvalidInput,
		"ErrInvalidMutation": ErrInvalidMutation,
		"ErrNotFoundCode":    ErrNotFoundCode,
		"ErrInvalidArchive":  ErrInvalidArchive,
		"ErrStorage":         ErrStorage,
		"ErrAIUnavailable":   ErrAIUnavailable,
		"ErrAuthentication":  ErrAuthentication,
		"ErrConflict":        ErrConflict,
		"ErrInternalServer":  ErrInternalServer,
		"ErrValidation":      ErrValidation,
	}

	expectedValues := map[string]string{
		"ErrInvalidInput":    "INVALID_INPUT",
		"ErrInvalidMutation": "INVALID_MUTATION",
		"ErrNotFoundCode":    "NOT_FOUND",
		"ErrInvalidArchive":  "INVALID_ARCHIVE",
		"ErrStorage":         "STORAGE_ERROR",
		"ErrAIUnavailable":   "AI_UNAVAILABLE",
		"ErrAuthentication":  "AUTHENTICATION_ERROR",
		"ErrConflict":        "CONFLICT",
		"ErrInternalServer":  "INTERNAL_SERVER_ERROR",
		"ErrValidation":      "VALIDATION_ERROR",
	}

	for name, actual := range constants {
		expected := expectedValues[name]
		if actual != expected {
			t.Errorf("Expected %s to be %s, got %s", name, expected, actual)
		}
	}
}
