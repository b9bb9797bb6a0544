package skills

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies recoverable skill and manifest failures.
type ErrorKind string

// Error kinds raised by the parser, the skill framework, the monitor adapter
// and the executor.
const (
	KindParse               ErrorKind = "ParseError"
	KindMissingArgument     ErrorKind = "MissingArgument"
	KindCoercion            ErrorKind = "CoercionError"
	KindDuplicateSkill      ErrorKind = "DuplicateSkill"
	KindUnknownSkill        ErrorKind = "UnknownSkill"
	KindDuplicateMonitor    ErrorKind = "DuplicateMonitorName"
	KindUnknownMonitor      ErrorKind = "UnknownMonitor"
	KindUnknownInstruction  ErrorKind = "UnknownInstruction"
	KindInvalidInstruction  ErrorKind = "InvalidInstruction"
	KindMissingVariable     ErrorKind = "MissingVariable"
	KindCapabilityMismatch  ErrorKind = "CapabilityMismatch"
	KindHashFailure         ErrorKind = "HashFailure"
	KindCommandFailed       ErrorKind = "CommandFailed"
	KindCommandNotAllowed   ErrorKind = "CommandNotAllowed"
	KindAssertionFailed     ErrorKind = "AssertionFailed"
	KindEventNotObserved    ErrorKind = "EventNotObserved"
	KindNoDevicesConfigured ErrorKind = "NoDevicesConfigured"
	KindExpression          ErrorKind = "ExpressionError"
)

// Error is the single recoverable error type surfaced to callers.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error of the given kind around cause.
func WrapError(cause error, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err, or anything it wraps, is an Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var skillErr *Error
	for err != nil {
		if !errors.As(err, &skillErr) {
			return false
		}
		if skillErr.Kind == kind {
			return true
		}
		err = skillErr.Cause
	}
	return false
}

// KindOf returns the kind of the outermost Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var skillErr *Error
	if errors.As(err, &skillErr) {
		return skillErr.Kind, true
	}
	return "", false
}
