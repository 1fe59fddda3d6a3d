package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error raised by the ledger core. Every error that crosses
// a package boundary carries exactly one Kind so callers can dispatch on it
// without string matching.
type Kind int

const (
	// KindNotFound indicates an entity that was asked for by address or id and
	// is genuinely expected to exist. Plain absence of optional data is never
	// an error; reads of absent content return nil instead.
	KindNotFound Kind = iota
	// KindInvalidAddress indicates a string that does not parse as a ledger address.
	KindInvalidAddress
	// KindInvalidConfiguration indicates a component was constructed with options
	// it cannot start from.
	KindInvalidConfiguration
	// KindIntegrity indicates stored bytes that fail verification against their digest.
	KindIntegrity
	// KindCoercion indicates a literal that could not be converted to a column type.
	KindCoercion
	// KindUnsupported indicates an operation the backing store has no capability for.
	KindUnsupported
	// KindIOError indicates an underlying read or write failure.
	KindIOError
	// KindClosed indicates an operation against an already-closed handle.
	KindClosed
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidAddress:
		return "InvalidAddress"
	case KindInvalidConfiguration:
		return "InvalidConfiguration"
	case KindIntegrity:
		return "Integrity"
	case KindCoercion:
		return "Coercion"
	case KindUnsupported:
		return "Unsupported"
	case KindIOError:
		return "IOError"
	case KindClosed:
		return "Closed"
	}

	return "Unknown"
}

// StatusClass returns the HTTP-style status class for the kind: 400 for errors
// caused by the caller, 500 for errors raised by the system itself.
func (k Kind) StatusClass() int {
	switch k {
	case KindNotFound, KindInvalidAddress, KindInvalidConfiguration, KindCoercion, KindUnsupported, KindClosed:
		return 400
	default:
		return 500
	}
}

// Error records a classified error with an optional business code and the
// underlying cause. It is the single error currency of the module.
type Error struct {
	Kind    Kind
	Code    string
	Title   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
		}

		return e.Kind.String()
	}

	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("%s - %s", e.Code, e.Message)
	}

	return e.Message
}

// Unwrap implements the error interface introduced in Go 1.13 to unwrap the internal error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewWithCode creates a classified error carrying a business code.
func NewWithCode(kind Kind, code, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a classified error around an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsKind reports whether err (or any error it wraps) is a classified error of
// the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}

	return false
}

// KindOf returns the kind of err, or KindIOError when err carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindIOError
}
