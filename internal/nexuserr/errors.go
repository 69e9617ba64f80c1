// Package nexuserr defines the typed error kinds shared across NEXUS's
// router, pipeline, and ledger so the HTTP edge can map them to status
// codes in exactly one place instead of leaning on panics or sentinel
// strings.
package nexuserr

import "fmt"

// Kind identifies the category of a NEXUS error, per the error table in
// the specification's error handling design.
type Kind string

const (
	Unconfigured    Kind = "unconfigured"
	UnknownProvider Kind = "unknown_provider"
	ModeViolation   Kind = "mode_violation"
	RateLimit       Kind = "rate_limit"
	ServerFault     Kind = "server_fault"
	Unrecoverable   Kind = "unrecoverable"
	PolicyViolation Kind = "policy_violation"
	NotIndexed      Kind = "not_indexed"
	NotFound        Kind = "not_found"
	BadRequest      Kind = "bad_request"
)

// Error is the single error type raised by NEXUS's core components. The
// HTTP surface inspects Kind, never the message text, to decide status
// codes and retry eligibility.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error around an existing error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Retryable reports whether the provider retry loop should attempt the
// call again (rate_limit and server_fault per the specification).
func (e *Error) Retryable() bool {
	return e.Kind == RateLimit || e.Kind == ServerFault
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, else "".
func KindOf(err error) Kind {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return ""
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
