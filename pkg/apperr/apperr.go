// Package apperr classifies the failures the workflow core reports to its callers.
//
// Every rejected operation returns an *Error whose Kind tells the caller what went
// wrong: bad input, a missing record, an illegal lifecycle move, a move by the wrong
// actor, or a broken invariant.
// Kinds compare with errors.Is against the exported sentinels, so wrapped errors
// classify the same way as bare ones.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the classification of an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNotFound
	KindInvalidStateTransition
	KindInvariantViolation
	KindComputation
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindInvalidStateTransition:
		return "invalid_state_transition"
	case KindInvariantViolation:
		return "invariant_violation"
	case KindComputation:
		return "computation"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrInvalidInput           = &Error{Kind: KindInvalidInput}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrInvariantViolation     = &Error{Kind: KindInvariantViolation}
	ErrComputation            = &Error{Kind: KindComputation}
	ErrForbidden              = &Error{Kind: KindForbidden}
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "create subtask"
	Message string
	cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on Kind so sentinels compare equal to any error of the same class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// InvalidInput reports missing or malformed caller input.
func InvalidInput(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a referenced record that does not exist.
func NotFound(op, entity, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// InvalidTransition reports a lifecycle move the state machine does not allow.
func InvalidTransition(op, from, to string) error {
	return &Error{Kind: KindInvalidStateTransition, Op: op, Message: fmt.Sprintf("cannot move from %s to %s", from, to)}
}

// InvariantViolation reports an update that would break a stored invariant.
func InvariantViolation(op, format string, args ...any) error {
	return &Error{Kind: KindInvariantViolation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Computation reports a scoring input or result that is not a finite, in-range number.
func Computation(op, format string, args ...any) error {
	return &Error{Kind: KindComputation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports an actor attempting a move reserved for someone else.
func Forbidden(op, format string, args ...any) error {
	return &Error{Kind: KindForbidden, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a classified error.
func Wrap(kind Kind, op string, cause error) error {
	return &Error{Kind: kind, Op: op, cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsDefect reports whether err signals a bug rather than a caller mistake.
// Defects are logged at error severity.
func IsDefect(err error) bool {
	switch KindOf(err) {
	case KindInvariantViolation, KindComputation:
		return true
	}
	return false
}
