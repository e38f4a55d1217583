// Package apperr defines the error taxonomy shared by the capture, vision and
// session layers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind represents the category of an error
type Kind int

const (
	KindInput  Kind = iota // Unreadable image, mismatched dimensions, malformed template
	KindDevice             // Capture or gesture transport failure
	KindConfig             // Missing/invalid threshold, undefined action name
)

// String returns the human readable kind name
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input error"
	case KindDevice:
		return "device error"
	case KindConfig:
		return "configuration error"
	default:
		return "unknown error"
	}
}

// Error is the structured error returned by this module's packages.
type Error struct {
	Kind    Kind
	Op      string // Operation that failed, e.g. "cv.Compare"
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s += ": " + e.Op
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// New creates a new Error of the given kind.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// Newf creates a new Error with a formatted message.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error.
func Wrap(err error, kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Input is shorthand for Newf(KindInput, ...).
func Input(op, format string, args ...interface{}) *Error {
	return Newf(KindInput, op, format, args...)
}

// Device is shorthand for Newf(KindDevice, ...).
func Device(op, format string, args ...interface{}) *Error {
	return Newf(KindDevice, op, format, args...)
}

// Config is shorthand for Newf(KindConfig, ...).
func Config(op, format string, args ...interface{}) *Error {
	return Newf(KindConfig, op, format, args...)
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func IsInput(err error) bool  { return IsKind(err, KindInput) }
func IsDevice(err error) bool { return IsKind(err, KindDevice) }
func IsConfig(err error) bool { return IsKind(err, KindConfig) }
