package lookup

import (
	"errors"
	"fmt"
)

// Kind classifies lookup failures.
type Kind int

const (
	// KindTransport covers network, timeout, decoding and unexpected status failures.
	KindTransport Kind = iota
	// KindNotFound means the requested account does not exist.
	KindNotFound
	// KindRateLimited means the upstream quota is exhausted.
	KindRateLimited
)

// String returns the kind label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "transport"
	}
}

// Error is the failure type returned across the lookup boundary.
type Error struct {
	Kind   Kind
	Op     string // resolve, recent_posts or search.
	Status int    // HTTP status when one was received.
	Err    error
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("lookup %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a lookup error.
func NewError(kind Kind, op string, status int, err error) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are transport failures.
func KindOf(err error) Kind {
	var lookupErr *Error
	if errors.As(err, &lookupErr) && lookupErr != nil {
		return lookupErr.Kind
	}
	return KindTransport
}

// IsNotFound reports whether err is a not-found lookup error.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsRateLimited reports whether err is an upstream rate-limit error.
func IsRateLimited(err error) bool {
	return err != nil && KindOf(err) == KindRateLimited
}
