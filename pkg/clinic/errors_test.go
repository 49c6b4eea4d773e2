package clinic

import (
	"errors"
	"testing"
)

const (
	operationName    = "store"
	subjectName      = "vaccine"
	codeName         = "consume"
	baseErrorMessage = "base error"
)

func TestOperationErrorFormatting(test *testing.T) {
	test.Parallel()
	baseError := errors.New(baseErrorMessage)
	wrappedError := WrapError(operationName, subjectName, codeName, baseError)
	if wrappedError == nil {
		test.Fatalf("expected wrapped error")
	}
	expected := operationName + "." + subjectName + "." + codeName + ": " + baseErrorMessage
	if wrappedError.Error() != expected {
		test.Fatalf("expected %q, got %q", expected, wrappedError.Error())
	}
}

func TestWrapErrorNil(test *testing.T) {
	test.Parallel()
	if WrapError(operationName, subjectName, codeName, nil) != nil {
		test.Fatalf("expected nil wrapped error")
	}
}

func TestMarkStoreUnavailable(test *testing.T) {
	test.Parallel()
	if MarkStoreUnavailable(nil) != nil {
		test.Fatalf("expected nil for nil input")
	}
	driverError := errors.New("sql: database is closed")
	tagged := MarkStoreUnavailable(driverError)
	if !errors.Is(tagged, ErrStoreUnavailable) {
		test.Fatalf("expected driver error tagged store-unavailable, got %v", tagged)
	}
	if retagged := MarkStoreUnavailable(tagged); retagged != tagged {
		test.Fatalf("expected tagged error passed through, got %v", retagged)
	}
	for _, sentinel := range []error{ErrNotFound, ErrAlreadyExists, ErrInsufficientDoses, ErrNoCaregiverAvailable, ErrInvalidUsername} {
		if marked := MarkStoreUnavailable(sentinel); marked != sentinel {
			test.Fatalf("expected %v untouched, got %v", sentinel, marked)
		}
		if errors.Is(MarkStoreUnavailable(sentinel), ErrStoreUnavailable) {
			test.Fatalf("domain outcome %v must not read as an outage", sentinel)
		}
	}
}

func TestOperationErrorUnwrapsSentinel(test *testing.T) {
	test.Parallel()
	wrappedError := WrapError(operationName, subjectName, codeName, ErrInsufficientDoses)
	if !errors.Is(wrappedError, ErrInsufficientDoses) {
		test.Fatalf("expected errors.Is to reach the sentinel through the wrapper")
	}
	var operationError OperationError
	if !errors.As(wrappedError, &operationError) {
		test.Fatalf("expected OperationError")
	}
	if operationError.Operation() != operationName || operationError.Subject() != subjectName || operationError.Code() != codeName {
		test.Fatalf("unexpected segments: %s %s %s", operationError.Operation(), operationError.Subject(), operationError.Code())
	}
}
