package errors

import (
	"errors"
	"fmt"
	"log/slog"
)

// Category represents the type of error.
type Category string

const (
	CategoryMedium   Category = "medium"
	CategoryStorage  Category = "storage"
	CategoryCoercion Category = "coercion"
	CategoryURL      Category = "url"
	CategoryConfig   Category = "config"
	CategoryCLI      Category = "cli"
)

// SyncError is a structured error with a registered code.
type SyncError struct {
	// Code is a unique error identifier (e.g., "S002").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Key is the storage key or URL namespace involved, if any.
	Key string

	// Field is the state field involved, if any.
	Field string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *SyncError) Unwrap() error {
	return e.Wrapped
}

// WithKey records the storage key or namespace.
func (e *SyncError) WithKey(key string) *SyncError {
	e.Key = key
	return e
}

// WithField records the state field.
func (e *SyncError) WithField(field string) *SyncError {
	e.Field = field
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *SyncError) WithDetail(d string) *SyncError {
	e.Detail = d
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *SyncError) WithSuggestion(s string) *SyncError {
	e.Suggestion = s
	return e
}

// Wrap wraps another error.
func (e *SyncError) Wrap(err error) *SyncError {
	e.Wrapped = err
	return e
}

// Attrs returns slog attributes describing err.
func Attrs(err error) []any {
	var se *SyncError
	if !errors.As(err, &se) {
		return []any{slog.String("error", err.Error())}
	}
	attrs := []any{
		slog.String("code", se.Code),
		slog.String("category", string(se.Category)),
	}
	if se.Key != "" {
		attrs = append(attrs, slog.String("key", se.Key))
	}
	if se.Field != "" {
		attrs = append(attrs, slog.String("field", se.Field))
	}
	if se.Wrapped != nil {
		attrs = append(attrs, slog.String("error", se.Wrapped.Error()))
	}
	return attrs
}

// New creates a SyncError from a registered error code.
func New(code string) *SyncError {
	template, ok := registry[code]
	if !ok {
		return &SyncError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &SyncError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new SyncError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *SyncError {
	return &SyncError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a SyncError.
func FromError(err error, code string) *SyncError {
	if err == nil {
		return nil
	}
	var se *SyncError
	if errors.As(err, &se) {
		return se
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err is a SyncError with the given code.
func HasCode(err error, code string) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Code == code
}
