package gdr

import (
	"errors"
	"fmt"
)

// =====================================
// Error Handling
// =====================================

// Error represents an engine-specific error
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface
func (e Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific kind
func (e Error) Is(target error) bool {
	if targetErr, ok := target.(Error); ok {
		return e.Kind == targetErr.Kind
	}
	return false
}

// NewError creates a new Error
func NewError(kind ErrorKind, message string) Error {
	return Error{
		Kind:    kind,
		Message: message,
	}
}

// NewErrorf creates a new Error with a formatted message
func NewErrorf(kind ErrorKind, format string, args ...interface{}) Error {
	return Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewErrorWithCause creates a new Error with a cause
func NewErrorWithCause(kind ErrorKind, message string, cause error) Error {
	return Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// KindOf returns the ErrorKind carried by err, unwrapping as needed.
// Returns the empty kind when err carries no engine error.
func KindOf(err error) ErrorKind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsErrorKind checks if an error is of a specific kind
func IsErrorKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return IsErrorKind(err, ErrorKindNotFound)
}

// IsNonUniqueResult checks if an error is a "non-unique result" error
func IsNonUniqueResult(err error) bool {
	return IsErrorKind(err, ErrorKindNonUniqueResult)
}

// IsCancelled checks if an error is a "cancelled" error
func IsCancelled(err error) bool {
	return IsErrorKind(err, ErrorKindCancelled)
}

// IsExecution checks if an error is an "execution" error
func IsExecution(err error) bool {
	return IsErrorKind(err, ErrorKindExecution)
}

// IsTypeMismatch checks if an error is a "type mismatch" error
func IsTypeMismatch(err error) bool {
	return IsErrorKind(err, ErrorKindTypeMismatch)
}

// IsConfiguration reports whether an error belongs to the
// configuration-time family that must fail application startup.
func IsConfiguration(err error) bool {
	switch KindOf(err) {
	case ErrorKindAmbiguousIdentifier,
		ErrorKindUnsupportedFieldType,
		ErrorKindUnresolvableProperty,
		ErrorKindArityMismatch,
		ErrorKindInconsistentPlaceholderStyle,
		ErrorKindUnnamedParameter,
		ErrorKindConfiguration:
		return true
	}
	return false
}
