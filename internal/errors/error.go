package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryUsage   Category = "usage"
	CategoryStorage Category = "storage"
	CategoryConfig  Category = "config"
	CategoryCLI     Category = "cli"
)

// CartError is a structured error with a code, a suggestion, and a wrapped cause.
type CartError struct {
	// Code is a unique error identifier (e.g., "E001").
	Code string

	// Category is the error type (usage, storage, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *CartError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *CartError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a *CartError with the same code.
// This lets callers match against templates: errors.Is(err, errors.New("E010")).
func (e *CartError) Is(target error) bool {
	t, ok := target.(*CartError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithSuggestion adds a fix suggestion to the error.
func (e *CartError) WithSuggestion(s string) *CartError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *CartError) WithDetail(d string) *CartError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *CartError) Wrap(err error) *CartError {
	e.Wrapped = err
	return e
}

// New creates a CartError from a registered error code.
func New(code string) *CartError {
	template, ok := registry[code]
	if !ok {
		return &CartError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &CartError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new CartError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *CartError {
	return &CartError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a CartError.
// Errors that already carry a CartError in their chain are returned as that CartError.
func FromError(err error, code string) *CartError {
	if err == nil {
		return nil
	}
	var ce *CartError
	if stderrors.As(err, &ce) {
		return ce
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err carries a CartError with the given code.
func HasCode(err error, code string) bool {
	var ce *CartError
	if !stderrors.As(err, &ce) {
		return false
	}
	return ce.Code == code
}
