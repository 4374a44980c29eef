package hookrelay

import (
	"errors"
	"fmt"
)

var (
	// Store errors.
	ErrNoStore     = errors.New("hookrelay: no store configured")
	ErrNoSource    = errors.New("hookrelay: no queue source configured")
	ErrStoreClosed = errors.New("hookrelay: store closed")

	// Not found errors.
	ErrWebhookNotFound = errors.New("hookrelay: webhook not found")
	ErrAttemptNotFound = errors.New("hookrelay: delivery attempt not found")
	ErrDLQNotFound     = errors.New("hookrelay: dlq entry not found")

	// Conflict errors.
	ErrWebhookExists = errors.New("hookrelay: webhook already exists")
	ErrAttemptExists = errors.New("hookrelay: delivery attempt already exists")

	// State errors.
	ErrInvalidState = errors.New("hookrelay: invalid delivery state transition")

	// Queue errors.
	ErrQueueClosed      = errors.New("hookrelay: queue source closed")
	ErrMalformedMessage = errors.New("hookrelay: malformed queue message")
)

// ValidationError reports an invalid webhook configuration at creation time.
// It is rejected synchronously and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("hookrelay: invalid webhook config: %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
