package clinic

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the scheduling services.
var (
	ErrAlreadyExists        = errors.New("already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrNoCaregiverAvailable = errors.New("no caregiver available")
	ErrInsufficientDoses    = errors.New("insufficient doses")
	ErrNotFound             = errors.New("not found")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrStoreUnavailable     = errors.New("store unavailable")

	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidUsername      = errors.New("invalid username")
	ErrInvalidVaccineName   = errors.New("invalid vaccine name")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidAppointmentID = errors.New("invalid appointment id")
	ErrInvalidDoseCount     = errors.New("invalid dose count")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

var domainSentinels = []error{
	ErrAlreadyExists,
	ErrInvalidCredentials,
	ErrNoCaregiverAvailable,
	ErrInsufficientDoses,
	ErrNotFound,
	ErrNotAuthorized,
	ErrInvalidRole,
	ErrInvalidUsername,
	ErrInvalidVaccineName,
	ErrInvalidDate,
	ErrInvalidAppointmentID,
	ErrInvalidDoseCount,
}

// MarkStoreUnavailable tags err with ErrStoreUnavailable unless it already
// maps to a domain sentinel. Store backends route driver and transport
// failures through it so an outage is distinguishable from a domain outcome.
func MarkStoreUnavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	for _, sentinel := range domainSentinels {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
