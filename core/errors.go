package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports that a referenced record does not exist.
type NotFoundError struct {
	Err error
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{Err: errors.New(msg)}
}

func (err NotFoundError) Error() string { return err.Err.Error() }

// ConflictError reports a write that collides with existing state.
type ConflictError struct {
	Err error
}

func NewConflictError(msg string) error {
	return &ConflictError{Err: errors.New(msg)}
}

func (err ConflictError) Error() string { return err.Err.Error() }

// ForbiddenError reports a caller whose role does not grant the operation.
type ForbiddenError struct {
	Role      string
	Operation string
}

func NewForbiddenError(role, operation string) error {
	return &ForbiddenError{Role: role, Operation: operation}
}

func (err ForbiddenError) Error() string {
	if err.Role == "" {
		return fmt.Sprintf("not authenticated: %s requires an authenticated user", err.Operation)
	}
	return fmt.Sprintf("permission denied: role %q may not %s", err.Role, err.Operation)
}

// StoreError wraps a failed call to the backing store.
type StoreError struct {
	Op  string
	Err error
}

func NewStoreError(err error, op string) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (err StoreError) Error() string { return err.Op + ": " + err.Err.Error() }

// Unwrap exposes the driver error to errors.Is/As.
func (err StoreError) Unwrap() error { return err.Err }

// ExternalServiceError wraps a failed call to an outbound service.
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Err        error
}

func NewExternalServiceError(service string, statusCode int, err error) error {
	return &ExternalServiceError{Service: service, StatusCode: statusCode, Err: err}
}

func (err ExternalServiceError) Error() string {
	if err.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", err.Service, err.StatusCode, err.Err)
	}
	return fmt.Sprintf("%s: %v", err.Service, err.Err)
}

func (err ExternalServiceError) Unwrap() error { return err.Err }

// ErrorTitle returns the short, caller-facing title of an error kind.
func ErrorTitle(err error) string {
	switch errors.Cause(err).(type) {
	case *ValidationError:
		return "Validation Error"
	case *NotFoundError:
		return "Not Found"
	case *ConflictError:
		return "Conflict"
	case *ForbiddenError:
		return "Forbidden"
	case *ExternalServiceError:
		return "External Service Error"
	case *StoreError:
		return "Store Error"
	default:
		return "Internal Server Error"
	}
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
