// Package apperr defines the error values every user-visible failure is reported with.
//
// An *Error is a sentinel: packages declare them once and wrap them with
// fmt.Errorf("...: %w", ErrX) to add detail. The code and message are safe to
// show to clients; the wrapping detail is only logged.
package apperr

import "errors"

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalidInput
	KindUnavailable
	KindPaymentRequired
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindInvalidInput:
		return "InvalidInput"
	case KindUnavailable:
		return "Unavailable"
	case KindPaymentRequired:
		return "PaymentRequired"
	default:
		return "Internal"
	}
}

type Error struct {
	Code      string
	Kind      Kind
	Message   string
	Retryable bool
}

func New(code string, kind Kind, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

// NewRetryable is New for failures the caller may retry without changing the request.
func NewRetryable(code string, kind Kind, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message, Retryable: true}
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// From returns the first *Error in err's chain.
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable reports whether err wraps a retryable *Error.
func IsRetryable(err error) bool {
	e, ok := From(err)
	return ok && e.Retryable
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	if e, ok := From(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Store failures shared by every backing store.
var (
	ErrTimeout   = NewRetryable("timeout", KindUnavailable, "the operation timed out, please retry")
	ErrStoreBusy = NewRetryable("store_busy", KindUnavailable, "the store is busy, please retry")
)
