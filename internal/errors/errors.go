// Package errors tags errors with the category the caller needs to decide how to react:
// reject the input, surface a resource problem, report an informational condition, or keep the
// working set for a retry after a storage failure.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
)

// Kind represents the category of an error.
type Kind string

const (
	// KindInput marks invalid caller input (bad date range, unknown student). Not retried.
	KindInput Kind = "input"
	// KindResource marks an unavailable external resource (camera, embedding server).
	KindResource Kind = "resource"
	// KindConsistency marks a degenerate but well-defined condition (empty gallery, zero working days).
	KindConsistency Kind = "consistency"
	// KindPersistence marks a storage failure. The whole batch was rejected.
	KindPersistence Kind = "persistence"
	// KindNotFound marks a missing entity.
	KindNotFound Kind = "not-found"
	// KindUnknown is returned by KindOf for untagged errors.
	KindUnknown Kind = "unknown"
)

// Error wraps an error with its kind, the failing operation and optional context.
type Error struct {
	Kind    Kind
	Op      string
	Err     error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against another *Error of the same kind, so callers can test
// errors.Is(err, &errors.Error{Kind: errors.KindInput}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// With returns a copy of e with key=value added to its context.
func (e *Error) With(key string, value any) *Error {
	ctx := make(map[string]any, len(e.Context)+1)
	maps.Copy(ctx, e.Context)
	ctx[key] = value
	return &Error{Kind: e.Kind, Op: e.Op, Err: e.Err, Context: ctx}
}

func build(kind Kind, op string, err error) *Error {
	if err == nil {
		err = stderrors.New(string(kind) + " error")
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Input tags err as invalid input.
func Input(op string, err error) *Error { return build(KindInput, op, err) }

// Inputf builds an input error from a format string.
func Inputf(op, format string, args ...any) *Error {
	return build(KindInput, op, fmt.Errorf(format, args...))
}

// Resource tags err as an unavailable resource.
func Resource(op string, err error) *Error { return build(KindResource, op, err) }

// Consistency tags err as an informational, non-fatal condition.
func Consistency(op string, err error) *Error { return build(KindConsistency, op, err) }

// Persistence tags err as a storage failure.
func Persistence(op string, err error) *Error { return build(KindPersistence, op, err) }

// NotFound builds a not-found error for the named entity.
func NotFound(op, entity, id string) *Error {
	return build(KindNotFound, op, fmt.Errorf("%s %q not found", entity, id)).With(entity, id)
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// New, Is and As re-export the standard library helpers so callers need a single import.
func New(text string) error { return stderrors.New(text) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
