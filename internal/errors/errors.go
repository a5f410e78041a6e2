// Package errors provides standardized domain errors with codes for the
// OpenBook sync core.
//
// Usage:
//
//	// In services - return typed errors
//	if key == nil {
//	    return errors.NoAccess("no shelf key for this author")
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrNoAccess) {
//	    // show the "request access" affordance, not an error banner
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application. They follow the failure
// taxonomy of the sync core: transport failures are retryable and shown to
// the user, decrypt failures are silent, missing keys are a normal state,
// and signer-capability failures abort the operation atomically.
const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeValidation       Code = "VALIDATION"
	CodeConflict         Code = "CONFLICT"
	CodeTransport        Code = "TRANSPORT"
	CodeDecrypt          Code = "DECRYPT"
	CodeNoAccess         Code = "NO_ACCESS"
	CodeSignerCapability Code = "SIGNER_CAPABILITY"
	CodeKeyCorrupt       Code = "KEY_CORRUPT"
	CodeInternal         Code = "INTERNAL"
)

// Retryable reports whether a failed operation with this code is worth
// retrying by the user. Decrypt and capability failures are not: the same
// input fails the same way.
func (c Code) Retryable() bool {
	switch c {
	case CodeTransport, CodeInternal:
		return true
	default:
		return false
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound         = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation       = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict         = &Error{Code: CodeConflict, Message: "conflict"}
	ErrTransport        = &Error{Code: CodeTransport, Message: "transport failure"}
	ErrDecrypt          = &Error{Code: CodeDecrypt, Message: "decryption failed"}
	ErrNoAccess         = &Error{Code: CodeNoAccess, Message: "no access"}
	ErrSignerCapability = &Error{Code: CodeSignerCapability, Message: "signer capability unavailable"}
	ErrKeyCorrupt       = &Error{Code: CodeKeyCorrupt, Message: "stored key material is corrupt"}
	ErrInternal         = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Transport creates a transport error.
func Transport(msg string) *Error {
	return &Error{Code: CodeTransport, Message: msg}
}

// Transportf creates a transport error with formatted message.
func Transportf(format string, args ...any) *Error {
	return &Error{Code: CodeTransport, Message: fmt.Sprintf(format, args...)}
}

// Decrypt creates a decryption error.
func Decrypt(msg string) *Error {
	return &Error{Code: CodeDecrypt, Message: msg}
}

// NoAccess creates a missing-key error. This is a normal, recoverable state
// ("no access yet"), not a fault.
func NoAccess(msg string) *Error {
	return &Error{Code: CodeNoAccess, Message: msg}
}

// SignerCapability creates a signer-capability error.
func SignerCapability(msg string) *Error {
	return &Error{Code: CodeSignerCapability, Message: msg}
}

// KeyCorrupt creates a corrupt-key error.
func KeyCorrupt(msg string) *Error {
	return &Error{Code: CodeKeyCorrupt, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
