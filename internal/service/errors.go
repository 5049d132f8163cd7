// Package service holds the business rules of the club backend: sessions,
// the account lifecycle and the dues ledger.  Every failure leaves this
// package as a *Error carrying a Kind and a stable reason string.
package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.  The HTTP layer maps each kind to one status
// code.
type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindForbidden
	KindConflict
	KindNotFound
	KindInvalidInput
	KindInvalidPeriod
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindInvalidPeriod:
		return "invalid_period"
	case KindStorage:
		return "storage_failure"
	}
	return "unknown"
}

// Error is the single classified error returned by services.  Reason is
// safe to show to clients; Err keeps the underlying cause for logs.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, reason string) *Error { return &Error{Kind: k, Reason: reason} }

func unauthorized(reason string) *Error { return newErr(KindUnauthorized, reason) }
func forbidden(reason string) *Error    { return newErr(KindForbidden, reason) }
func conflict(reason string) *Error     { return newErr(KindConflict, reason) }
func notFound(reason string) *Error     { return newErr(KindNotFound, reason) }
func invalid(reason string) *Error      { return newErr(KindInvalidInput, reason) }

// storage wraps an unexpected repository error.  Classified errors pass
// through untouched so a guard failure raised inside a transaction keeps
// its kind.
func storage(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: KindStorage, Reason: "database error", Err: err}
}

// KindOf extracts the Kind of err, or KindStorage for unclassified errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStorage
}

// ReasonOf returns the client-facing reason of err.
func ReasonOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Reason
	}
	return "internal error"
}
