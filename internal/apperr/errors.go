// Package apperr defines the tagged error taxonomy surfaced across the
// engine: matching and price-engine routines never fail visibly, so every
// user-visible failure is constructed here and carries a Kind a caller can
// switch on plus a human-readable message.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags the category of a failure. Kinds are recoverable unless noted
// otherwise; only INVARIANT indicates a bug.
type Kind string

const (
	NoWorker              Kind = "NO_WORKER"
	WorkerUnavailable     Kind = "WORKER_UNAVAILABLE"
	Timeout               Kind = "TIMEOUT"
	Backpressure          Kind = "BACKPRESSURE"
	Validation            Kind = "VALIDATION"
	InsufficientFunds     Kind = "INSUFFICIENT_FUNDS"
	InsufficientInventory Kind = "INSUFFICIENT_INVENTORY"
	UnknownOrder          Kind = "UNKNOWN_ORDER"
	Invariant             Kind = "INVARIANT"
)

// Error is the concrete error type returned across package boundaries. It
// never carries a stack trace across the external interface; Cause() is
// exposed for internal diagnostics only.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a tagged error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a tagged error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an existing error, preserving it as
// the cause via github.com/pkg/errors so internal logs can still recover a
// stack trace with errors.Cause / %+v without leaking one to callers.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: errors.WithStack(cause)}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf extracts the Kind from err, or "" if err is not a tagged Error.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
