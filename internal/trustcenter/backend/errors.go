package backend

import (
	"errors"
	"fmt"

	dErrors "fts/pkg/domain-errors"
)

// ErrorCategory is the normalized failure taxonomy of backend calls.
type ErrorCategory string

const (
	// ErrorTimeout indicates the backend did not answer within the deadline.
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorOutage indicates the backend could not be reached or failed server-side.
	ErrorOutage ErrorCategory = "outage"

	// ErrorMisconfigured indicates the backend rejected our credentials or gateway setup.
	ErrorMisconfigured ErrorCategory = "misconfigured"

	// ErrorBadData indicates the backend answered with an unreadable or incomplete body.
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorUnknownDomain indicates the requested pseudonymization domain does not exist.
	ErrorUnknownDomain ErrorCategory = "unknown_domain"

	// ErrorRejected indicates the backend refused the request parameters.
	ErrorRejected ErrorCategory = "rejected"
)

// AdapterError wraps backend failures with a normalized category.
type AdapterError struct {
	Category   ErrorCategory
	Backend    Type
	Message    string
	Underlying error
}

func (e *AdapterError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("backend %s [%s]: %s: %v", e.Backend, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("backend %s [%s]: %s", e.Backend, e.Category, e.Message)
}

func (e *AdapterError) Unwrap() error {
	return e.Underlying
}

// NewAdapterError creates a categorized backend error.
func NewAdapterError(category ErrorCategory, backend Type, message string, underlying error) *AdapterError {
	return &AdapterError{
		Category:   category,
		Backend:    backend,
		Message:    message,
		Underlying: underlying,
	}
}

// GetCategory extracts the category from err. Uncategorized errors are outages.
func GetCategory(err error) ErrorCategory {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ErrorOutage
}

// ToDomainError translates a backend failure into a coded domain error.
// Unknown domains and rejected parameters are client errors; everything else
// is an infrastructure failure. Nothing here is retried.
func ToDomainError(err error) error {
	if err == nil {
		return nil
	}
	switch GetCategory(err) {
	case ErrorUnknownDomain:
		return dErrors.Wrap(err, dErrors.CodeUnknownDomain, unknownDomainMessage(err))
	case ErrorRejected:
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "pseudonym backend rejected the request")
	case ErrorTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, "pseudonym backend timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "pseudonym backend unavailable")
	}
}

func unknownDomainMessage(err error) string {
	var ae *AdapterError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return "unknown pseudonymization domain"
}
