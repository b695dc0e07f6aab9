package services

import (
	"errors"

	"github.com/revenac/apiserver/internal/store"
)

// ErrorKind is the machine-checkable category of a service error.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindAlreadyConsumed     ErrorKind = "already_consumed"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindRewardUnavailable   ErrorKind = "reward_unavailable"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindConflict            ErrorKind = "conflict"
	KindStoreFailure        ErrorKind = "store_failure"
)

// Error is returned by the services for every failed operation. Message is
// safe to show to the caller.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindStoreFailure {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func invalidInput(message string) *Error {
	return newError(KindInvalidInput, message, nil)
}

// storeFailure wraps an unexpected persistence error. The driver error is
// kept verbatim so callers can log it.
func storeFailure(err error) *Error {
	return newError(KindStoreFailure, "store failure", err)
}

// KindOf returns the kind of err, or KindStoreFailure for errors that did not
// come from this package.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindStoreFailure
}

// mapStoreError converts the store sentinels into service errors, using
// notFound as the message for store.ErrNotFound.
func mapStoreError(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return newError(KindNotFound, notFound, err)
	case errors.Is(err, store.ErrConflict):
		return newError(KindConflict, "conflicting record", err)
	default:
		return storeFailure(err)
	}
}
