package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrTypeConnectivity marks a database or model endpoint that could not be reached
	ErrTypeConnectivity ErrorType = "connectivity"
	// ErrTypeValidation marks a statement rejected before it reached the database
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeExecution marks a statement the database refused to run
	ErrTypeExecution ErrorType = "execution"
	// ErrTypeSelection marks model output outside the offered candidates
	ErrTypeSelection ErrorType = "selection"
	ErrTypeConfig    ErrorType = "config"
	ErrTypeModel     ErrorType = "model"
	ErrTypeNotFound  ErrorType = "not_found"
	ErrTypeInternal  ErrorType = "internal"
)

// Error represents a structured error with type and optional suggestions
type Error struct {
	Type        ErrorType
	Message     string
	Cause       error
	Suggestions []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSuggestion adds a suggestion for resolving the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// Detail returns the innermost message, which for execution errors is the
// raw text reported by the database driver.
func (e *Error) Detail() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}

	return e.Message
}

// New creates a new structured error
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new structured error with formatted message
func Newf(errType ErrorType, format string, args ...any) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, errType ErrorType, format string, args ...any) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type == errType
	}

	return false
}

// GetType returns the error type if it's a structured error
func GetType(err error) ErrorType {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type
	}

	return ErrTypeInternal
}

// As returns the structured error in err's chain, if any
func As(err error) (*Error, bool) {
	var structErr *Error
	ok := errors.As(err, &structErr)

	return structErr, ok
}

// DetailOf returns the driver-level message for structured errors and the
// plain message otherwise.
func DetailOf(err error) string {
	if err == nil {
		return ""
	}

	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Detail()
	}

	return err.Error()
}

// NewConfigError creates a configuration error with suggestions
func NewConfigError(message, field string) *Error {
	err := New(ErrTypeConfig, message)
	if field != "" {
		err.Message = fmt.Sprintf("%s (field: %s)", message, field)
	}

	return err.
		WithSuggestion("Check your configuration file syntax").
		WithSuggestion("Run with --help to see valid configuration options")
}

// NewValidationError creates an error for a statement refused by the safety gate
func NewValidationError(keyword string) *Error {
	return Newf(ErrTypeValidation, "%s statements are not allowed", keyword).
		WithSuggestion("Only read-only queries (SELECT, WITH, EXPLAIN) can be executed")
}
