/*
errors.go - Error kinds for the shift engine

PURPOSE:
  Every failure a caller can act on carries one of four kinds. The API layer
  maps kinds to HTTP status codes; nothing else inspects error strings.

ERROR KINDS:
  NotFound       no project, no shift version covering a date, no open
                 version to supersede
  Validation     employee not a project member, effective_from not after the
                 current version, malformed input
  Conflict       duplicate shift version for a date, duplicate allocation
                 for an employee/date
  Authorization  supervisor does not lead the project

USAGE:
  if errors.Is(err, shift.ErrConflict) { ... }

  var se *shift.Error
  if errors.As(err, &se) { log(se.Kind, se.Op) }

SEE ALSO:
  - store/sqlite/sqlite.go: translates UNIQUE violations to ErrConflict
  - api/handlers.go: kind -> status mapping
*/
package shift

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when input violates a business rule.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidOrder is the validation failure raised when a new version
	// does not start strictly after the version it supersedes.
	ErrInvalidOrder = fmt.Errorf("%w: effective_from must be after current effective_from", ErrValidation)

	// ErrConflict is returned when a write collides with an existing record.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized is returned when the acting supervisor may not touch a project.
	ErrUnauthorized = errors.New("not authorized")
)

// Kind classifies an Error.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindAuthorization Kind = "authorization"
)

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindConflict:
		return ErrConflict
	case KindAuthorization:
		return ErrUnauthorized
	}
	return nil
}

// =============================================================================
// STRUCTURED ERROR - Carries kind, operation and message
// =============================================================================

// Error is the structured error returned by every engine operation.
type Error struct {
	Kind Kind
	Op   string // e.g. "registry.version"
	Msg  string
	Err  error // optional cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NotFound builds a KindNotFound error.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Invalid builds a KindValidation error.
func Invalid(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Conflict builds a KindConflict error wrapping cause (may be nil).
func Conflict(op string, cause error, format string, args ...any) error {
	return &Error{Kind: KindConflict, Op: op, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Unauthorized builds a KindAuthorization error.
func Unauthorized(op, format string, args ...any) error {
	return &Error{Kind: KindAuthorization, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// KindOf returns the kind of err, or "" for unclassified (internal) errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUnauthorized):
		return KindAuthorization
	}
	return ""
}
