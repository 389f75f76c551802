// Package apperr defines the error taxonomy attached to every failure that
// crosses the storage/sync boundary. Storage adapters normalize driver and
// HTTP errors to these codes; callers branch on Code, never on error text.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies a failure.
type Code string

const (
	CodeNotFound     Code = "not-found"
	CodeValidation   Code = "validation"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal"
)

// Retryable reports whether a later attempt may succeed without caller
// changes. Only transient classes qualify.
func (c Code) Retryable() bool {
	return c == CodeUnavailable || c == CodeInternal
}

// UserMessage maps a code to a generic, non-technical sentence. Internal
// detail (wrapped errors, query text) never leaks through this mapping.
func (c Code) UserMessage() string {
	switch c {
	case CodeNotFound:
		return "that record could not be found"
	case CodeValidation:
		return "the request was invalid"
	case CodeConflict:
		return "the record was changed by someone else"
	case CodeUnauthorized:
		return "you are not signed in, or your key has expired"
	case CodeUnavailable:
		return "temporarily unavailable, please retry"
	default:
		return "something went wrong, please retry"
	}
}

// Error is a classified failure. Err carries the underlying cause for
// logging; Message is short context for operators, not end users.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a short message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. Returns nil when err is nil.
func Wrap(code Code, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf extracts the taxonomy code from err, defaulting to internal for
// unclassified errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
