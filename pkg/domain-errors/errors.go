// Package domainerrors defines the coded error type shared by services and handlers.
//
// Services return *Error values (or wrap lower-level errors with a code) and the
// HTTP layer maps codes to status codes in one place (pkg/platform/httputil).
//
// Usage:
//
//	return dErrors.New(dErrors.CodeValidation, "patientId is required")
//	return dErrors.Wrap(err, dErrors.CodeUnavailable, "pseudonym backend unreachable")
//	if dErrors.HasCode(err, dErrors.CodeUnknownDomain) { ... }
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, client-visible error identifier.
type Code string

const (
	CodeBadRequest     Code = "bad_request"
	CodeValidation     Code = "validation_error"
	CodeInvalidInput   Code = "invalid_input"
	CodeNotFound       Code = "not_found"
	CodeConflict       Code = "conflict"
	CodeUnknownDomain  Code = "unknown_domain"
	CodeTimeout        Code = "timeout"
	CodeUnavailable    Code = "unavailable"
	CodeInternal       Code = "internal_error"
	CodeInvariantError Code = "invariant_violation"
)

// Error carries a code, a client-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without an underlying cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost *Error in err's chain,
// or CodeInternal when err carries no code.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// IsClientError reports whether err should be surfaced as a rejected request
// rather than a failed operation.
func IsClientError(err error) bool {
	switch CodeOf(err) {
	case CodeBadRequest, CodeValidation, CodeInvalidInput, CodeNotFound, CodeConflict, CodeUnknownDomain:
		return true
	default:
		return false
	}
}
