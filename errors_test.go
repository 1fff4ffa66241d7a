package gdr

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := Error{
		Kind:    ErrorKindTypeMismatch,
		Message: "argument 1 does not match",
	}

	if err.Kind != ErrorKindTypeMismatch {
		t.Errorf("Expected error kind type_mismatch, got %s", err.Kind)
	}
	if err.Message != "argument 1 does not match" {
		t.Errorf("Expected message 'argument 1 does not match', got '%s'", err.Message)
	}
}

func TestErrorError(t *testing.T) {
	err := Error{
		Kind:    ErrorKindNotFound,
		Message: "datasource not found",
	}

	expected := "not_found: datasource not found"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestErrorWithCause(t *testing.T) {
	cause := errors.New("database connection failed")
	err := Error{
		Kind:    ErrorKindConfiguration,
		Message: "failed to connect",
		Cause:   cause,
	}

	if err.Cause != cause {
		t.Error("Expected cause to be set")
	}

	expectedMsg := "configuration: failed to connect (caused by: database connection failed)"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("original error")
	err := Error{
		Kind:    ErrorKindExecution,
		Message: "wrapped error",
		Cause:   cause,
	}

	unwrapped := err.Unwrap()
	if unwrapped != cause {
		t.Error("Expected unwrapped error to match original cause")
	}
}

func TestErrorIs(t *testing.T) {
	err1 := Error{Kind: ErrorKindTypeMismatch, Message: "type mismatch"}
	err2 := Error{Kind: ErrorKindTypeMismatch, Message: "different type mismatch"}
	err3 := Error{Kind: ErrorKindNotFound, Message: "not found error"}

	if !errors.Is(err1, err2) {
		t.Error("Expected errors with same kind to be equal")
	}

	if errors.Is(err1, err3) {
		t.Error("Expected errors with different kinds to not be equal")
	}
}

func TestNewError(t *testing.T) {
	err := NewError(ErrorKindUnsupported, "feature not supported")

	if err.Kind != ErrorKindUnsupported {
		t.Errorf("Expected error kind unsupported, got %s", err.Kind)
	}
	if err.Message != "feature not supported" {
		t.Errorf("Expected message 'feature not supported', got '%s'", err.Message)
	}
	if err.Cause != nil {
		t.Error("Expected no cause for basic error")
	}
}

func TestNewErrorf(t *testing.T) {
	err := NewErrorf(ErrorKindArityMismatch, "operation %q declares %d parameters", "findByName", 2)

	if err.Kind != ErrorKindArityMismatch {
		t.Errorf("Expected error kind arity_mismatch, got %s", err.Kind)
	}
	expected := `operation "findByName" declares 2 parameters`
	if err.Message != expected {
		t.Errorf("Expected message '%s', got '%s'", expected, err.Message)
	}
}

func TestNewErrorWithCause(t *testing.T) {
	cause := errors.New("original error")
	err := NewErrorWithCause(ErrorKindExecution, "execution failed", cause)

	if err.Kind != ErrorKindExecution {
		t.Errorf("Expected error kind execution, got %s", err.Kind)
	}
	if err.Message != "execution failed" {
		t.Errorf("Expected message 'execution failed', got '%s'", err.Message)
	}
	if err.Cause != cause {
		t.Error("Expected cause to be set")
	}
}

func TestKindOf(t *testing.T) {
	err := NewError(ErrorKindNonUniqueResult, "matched more than one row")

	if KindOf(err) != ErrorKindNonUniqueResult {
		t.Errorf("Expected kind non_unique_result, got %s", KindOf(err))
	}

	wrapped := NewErrorWithCause(ErrorKindExecution, "outer", err)
	if KindOf(wrapped) != ErrorKindExecution {
		t.Errorf("Expected outermost kind execution, got %s", KindOf(wrapped))
	}

	if KindOf(errors.New("regular error")) != "" {
		t.Error("Expected empty kind for non-engine error")
	}
}

func TestIsErrorKind(t *testing.T) {
	err := NewError(ErrorKindCancelled, "operation cancelled")

	if !IsErrorKind(err, ErrorKindCancelled) {
		t.Error("Expected IsErrorKind to return true for matching kind")
	}

	if IsErrorKind(err, ErrorKindNotFound) {
		t.Error("Expected IsErrorKind to return false for non-matching kind")
	}

	if IsErrorKind(errors.New("regular error"), ErrorKindCancelled) {
		t.Error("Expected IsErrorKind to return false for non-engine error")
	}
}

func TestIsNotFound(t *testing.T) {
	notFoundErr := NewError(ErrorKindNotFound, "not found")
	executionErr := NewError(ErrorKindExecution, "execution error")
	regularErr := errors.New("regular error")

	if !IsNotFound(notFoundErr) {
		t.Error("Expected IsNotFound to return true for not found error")
	}

	if IsNotFound(executionErr) {
		t.Error("Expected IsNotFound to return false for execution error")
	}

	if IsNotFound(regularErr) {
		t.Error("Expected IsNotFound to return false for regular error")
	}
}

func TestIsNonUniqueResult(t *testing.T) {
	nonUniqueErr := NewError(ErrorKindNonUniqueResult, "matched more than one row")
	notFoundErr := NewError(ErrorKindNotFound, "not found")

	if !IsNonUniqueResult(nonUniqueErr) {
		t.Error("Expected IsNonUniqueResult to return true for non-unique error")
	}

	if IsNonUniqueResult(notFoundErr) {
		t.Error("Expected IsNonUniqueResult to return false for not found error")
	}
}

func TestIsCancelled(t *testing.T) {
	cancelledErr := NewError(ErrorKindCancelled, "context cancelled")
	executionErr := NewError(ErrorKindExecution, "execution error")

	if !IsCancelled(cancelledErr) {
		t.Error("Expected IsCancelled to return true for cancelled error")
	}

	if IsCancelled(executionErr) {
		t.Error("Expected IsCancelled to return false for execution error")
	}
}

func TestIsConfiguration(t *testing.T) {
	configKinds := []ErrorKind{
		ErrorKindAmbiguousIdentifier,
		ErrorKindUnsupportedFieldType,
		ErrorKindUnresolvableProperty,
		ErrorKindArityMismatch,
		ErrorKindInconsistentPlaceholderStyle,
		ErrorKindUnnamedParameter,
		ErrorKindConfiguration,
	}

	for _, kind := range configKinds {
		if !IsConfiguration(NewError(kind, "test")) {
			t.Errorf("Expected IsConfiguration to return true for %s", kind)
		}
	}

	callKinds := []ErrorKind{
		ErrorKindTypeMismatch,
		ErrorKindExecution,
		ErrorKindCancelled,
		ErrorKindNonUniqueResult,
		ErrorKindNotFound,
		ErrorKindUnsupported,
	}

	for _, kind := range callKinds {
		if IsConfiguration(NewError(kind, "test")) {
			t.Errorf("Expected IsConfiguration to return false for %s", kind)
		}
	}

	if IsConfiguration(errors.New("regular error")) {
		t.Error("Expected IsConfiguration to return false for regular error")
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		expected string
	}{
		{ErrorKindAmbiguousIdentifier, "ambiguous_identifier"},
		{ErrorKindUnsupportedFieldType, "unsupported_field_type"},
		{ErrorKindUnresolvableProperty, "unresolvable_property"},
		{ErrorKindArityMismatch, "arity_mismatch"},
		{ErrorKindInconsistentPlaceholderStyle, "inconsistent_placeholder_style"},
		{ErrorKindUnnamedParameter, "unnamed_parameter"},
		{ErrorKindConfiguration, "configuration"},
		{ErrorKindTypeMismatch, "type_mismatch"},
		{ErrorKindExecution, "execution"},
		{ErrorKindCancelled, "cancelled"},
		{ErrorKindNonUniqueResult, "non_unique_result"},
		{ErrorKindNotFound, "not_found"},
		{ErrorKindUnsupported, "unsupported"},
	}

	for _, tt := range tests {
		if string(tt.kind) != tt.expected {
			t.Errorf("Expected %s to be '%s', got '%s'", tt.kind, tt.expected, string(tt.kind))
		}
	}
}

func TestChainedErrors(t *testing.T) {
	rootCause := errors.New("root cause")
	middleError := NewErrorWithCause(ErrorKindConfiguration, "connection failed", rootCause)
	topError := NewErrorWithCause(ErrorKindExecution, "execution error", middleError)

	if !errors.Is(topError, middleError) {
		t.Error("Expected errors.Is to find middle error in chain")
	}

	if !errors.Is(topError, rootCause) {
		t.Error("Expected errors.Is to find root cause in chain")
	}

	errorMsg := topError.Error()
	if errorMsg == "" {
		t.Error("Expected non-empty error message")
	}
}
