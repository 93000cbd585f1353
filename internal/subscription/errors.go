package subscription

import (
	"errors"
	"fmt"

	"github.com/MacJediWizard/parkadmin/internal/backend"
)

// ValidationError is returned before any backend call when command input is
// incomplete or out of range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// TransportError wraps a failed backend call. Its message is the server's
// message verbatim when the backend supplied one.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	var apiErr *backend.APIError
	if errors.As(e.Err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transport(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}
