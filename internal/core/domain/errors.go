// Package domain defines the core domain models of the page server.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
//
// Codes have the form PS-<AREA>-<NNNN>. Two DomainErrors are considered
// equal by errors.Is when their codes match, so sentinels can be
// decorated with details or a cause without losing their identity.
type DomainError struct {
	Code    string // Error code (e.g., "PS-REPO-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Repository errors (REPO).
var (
	// ErrPageNotFound indicates no version of a page exists at or before the LSN.
	ErrPageNotFound = NewDomainError("PS-REPO-4040", "page not found")

	// ErrRelationNotFound indicates the relation has no size at or before the LSN.
	ErrRelationNotFound = NewDomainError("PS-REPO-4041", "relation not found")

	// ErrLSNTimeout indicates the requested LSN did not become valid in time.
	ErrLSNTimeout = NewDomainError("PS-REPO-4080", "timed out waiting for lsn")

	// ErrInvalidPageImage indicates a page image of the wrong size.
	ErrInvalidPageImage = NewDomainError("PS-REPO-4001", "invalid page image")

	// ErrRepositoryClosed indicates the repository has been closed.
	ErrRepositoryClosed = NewDomainError("PS-REPO-5030", "repository closed")

	// ErrCorruptVersion indicates a stored page version could not be decoded.
	ErrCorruptVersion = NewDomainError("PS-REPO-5001", "corrupt page version")
)

// WAL redo errors (REDO).
var (
	// ErrNoBaseImage indicates redo was requested without a base image
	// and without an initializing record.
	ErrNoBaseImage = NewDomainError("PS-REDO-4001", "no base image for redo")

	// ErrMalformedRecord indicates a WAL record body could not be applied.
	ErrMalformedRecord = NewDomainError("PS-REDO-4002", "malformed wal record")

	// ErrRedoTimeout indicates redo did not finish within its deadline.
	ErrRedoTimeout = NewDomainError("PS-REDO-5040", "wal redo timed out")
)

// Object store errors (STORE).
var (
	// ErrKeyNotFound indicates the key does not exist in the object store.
	ErrKeyNotFound = NewDomainError("PS-STORE-4040", "key not found")

	// ErrStoreClosed indicates the object store has been closed.
	ErrStoreClosed = NewDomainError("PS-STORE-5030", "object store closed")

	// ErrUnknownDriver indicates an unsupported object store driver.
	ErrUnknownDriver = NewDomainError("PS-STORE-4001", "unknown object store driver")
)

// Argument errors (ARG).
var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("PS-ARG-1001", "invalid argument")
)
