package orchestrator

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies why a request could not be served.
type Kind string

const (
	KindMissingInput   Kind = "missing_input"
	KindProcessTimeout Kind = "process_timeout"
	KindProcessFailure Kind = "process_failure"
	KindParseError     Kind = "parse_error"
	KindInternal       Kind = "internal"
)

// Error carries a Kind through wrapping layers.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError builds an *Error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind of err. Bare deadline errors count as timeouts;
// anything unclassified is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindProcessTimeout
	}
	return KindInternal
}

// classify turns a provider error into an *Error, defaulting to a process failure.
func classify(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindProcessTimeout, op, err)
	}
	return NewError(KindProcessFailure, op, err)
}
