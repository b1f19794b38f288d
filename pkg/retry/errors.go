package retry

import (
	"context"
	"errors"
	"net"
)

// Class is the retry-relevant classification of a failed attempt.
type Class int

const (
	// ClassTransient covers network-level failures that are expected to
	// clear on their own: timeouts, 5xx responses, connection resets.
	ClassTransient Class = iota

	// ClassRateLimited covers 429 responses and site-specific throttle
	// signals. Retryable, but with a longer minimum delay.
	ClassRateLimited

	// ClassPermanent covers failures about the content itself: not-found,
	// auth, validation, unsupported. Never retried.
	ClassPermanent

	// ClassCancelled marks a user-requested abort. Not a failure.
	ClassCancelled
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassRateLimited:
		return "rate_limited"
	case ClassPermanent:
		return "permanent"
	case ClassCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Retryable reports whether the class allows another attempt at all.
func (c Class) Retryable() bool {
	return c == ClassTransient || c == ClassRateLimited
}

// Error carries a classification alongside the underlying cause. It is the
// wrapper strategies use so the class survives fmt.Errorf("%w") chains.
type Error struct {
	Class Class
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Class.String()
	}
	return e.Class.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a transient failure.
func Transient(err error) error {
	return &Error{Class: ClassTransient, Err: err}
}

// RateLimited wraps err as a throttle signal.
func RateLimited(err error) error {
	return &Error{Class: ClassRateLimited, Err: err}
}

// Permanent wraps err as a fatal, non-retryable failure.
func Permanent(err error) error {
	return &Error{Class: ClassPermanent, Err: err}
}

// Classify resolves the class of an arbitrary error.
//
// Precedence: an explicit *Error wrapper wins, then context cancellation,
// then net.Error timeouts. Anything else defaults to ClassTransient so an
// unclassified failure is retried rather than declared fatal.
func Classify(err error) Class {
	if err == nil {
		return ClassTransient
	}

	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Class
	}

	if errors.Is(err, context.Canceled) {
		return ClassCancelled
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ClassTransient
	}

	return ClassTransient
}
