package stats

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a stats error so the transport layer can map it
// to a status code without string matching.
type ErrorKind int

const (
	// KindValidation covers bad dimension, metric, filter, timezone or
	// date-range input. Rejected before any backing-store call.
	KindValidation ErrorKind = iota
	// KindNotFound means the short code or URL does not exist.
	KindNotFound
	// KindAccessDenied means the target exists but the caller may not
	// see its stats.
	KindAccessDenied
	// KindTransient means the durable store or cache backend was
	// unreachable; the request may succeed on retry.
	KindTransient
)

// Error is a typed stats error. Validation and access errors propagate
// to the caller untouched; infrastructure errors are converted to
// KindTransient at the store boundary.
type Error struct {
	Kind   ErrorKind
	Detail string
	cause  error
}

func (e *Error) Error() string {
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.cause
}

// ValidationErrorf builds a KindValidation error.
func ValidationErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

// NotFoundErrorf builds a KindNotFound error.
func NotFoundErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf(format, args...)}
}

// AccessDeniedErrorf builds a KindAccessDenied error.
func AccessDeniedErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindAccessDenied, Detail: fmt.Sprintf(format, args...)}
}

// TransientError wraps a backing-store failure.
func TransientError(op string, cause error) *Error {
	return &Error{
		Kind:   KindTransient,
		Detail: fmt.Sprintf("%s: backing store unavailable", op),
		cause:  cause,
	}
}

// KindOf extracts the kind from an error chain. The second return is
// false when the error is not a stats error.
func KindOf(err error) (ErrorKind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}
