package service

import (
	"errors"
	"fmt"
)

// Kind classifies why an analysis call failed.
type Kind int

const (
	// KindTransport: the call never completed (network, DNS, timeout, cancel).
	KindTransport Kind = iota + 1
	// KindStatus: the service answered with a non-2xx status.
	KindStatus
	// KindMalformed: the body could not be read or has no usable shape.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is returned by every failing analysis call.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindStatus:
		return fmt.Sprintf("analysis service error (status %d): %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("analysis service %s failure: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("analysis service %s failure", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Transport(err error) *Error {
	return &Error{Kind: KindTransport, Err: err}
}

func Malformed(err error) *Error {
	return &Error{Kind: KindMalformed, Err: err}
}

// KindOf reports the kind of err. Errors that did not come from this package
// are treated as malformed responses.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindMalformed
}
