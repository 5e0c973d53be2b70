// Package fault defines the error kinds shared by the query, backend and
// scoring layers. Callers branch on Kind rather than on message text.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnknown         Kind = ""
	KindInvalidArgument Kind = "INVALID_ARGUMENT" // malformed construction, e.g. negative radius
	KindDataLoad        Kind = "DATA_LOAD"        // source unreadable, absent or structurally broken
	KindPrecondition    Kind = "PRECONDITION"     // backend queried before load
	KindInvalidInput    Kind = "INVALID_INPUT"    // per-call input problem, e.g. missing coordinate
	KindNotFound        Kind = "NOT_FOUND"        // resolver could not locate an address
)

// Error carries a Kind plus enough context to report it to a user.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "backend.Load"
	Subject string // offending source, subject ID or address
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Subject != "" {
		msg += " (" + e.Subject + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, fault.ErrNotFound)
// works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Subject == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrDataLoad        = &Error{Kind: KindDataLoad}
	ErrPrecondition    = &Error{Kind: KindPrecondition}
	ErrInvalidInput    = &Error{Kind: KindInvalidInput}
	ErrNotFound        = &Error{Kind: KindNotFound}
)

func newf(kind Kind, op, subject, format string, args ...any) *Error {
	var err error
	if format != "" {
		err = fmt.Errorf(format, args...)
	}
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// InvalidArgument reports a rejected construction.
func InvalidArgument(op, format string, args ...any) *Error {
	return newf(KindInvalidArgument, op, "", format, args...)
}

// DataLoad reports an unreadable source. source names it.
func DataLoad(op, source string, err error) *Error {
	return &Error{Kind: KindDataLoad, Op: op, Subject: source, Err: err}
}

// Precondition reports a call made in the wrong lifecycle state.
func Precondition(op, format string, args ...any) *Error {
	return newf(KindPrecondition, op, "", format, args...)
}

// InvalidInput reports a recoverable per-call input problem.
func InvalidInput(op, subject string, err error) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Subject: subject, Err: err}
}

// NotFound reports a lookup miss.
func NotFound(op, subject string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Subject: subject}
}

// KindOf returns the outermost Kind in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}
