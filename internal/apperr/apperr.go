// Package apperr defines the error kinds the publish-governance operations
// return to callers. The HTTP layer maps kinds to status codes; nothing in
// this package is retried automatically.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// KindNotFound covers missing events, workspaces and publish requests.
	KindNotFound Kind = "NOT_FOUND"

	// KindAuth covers operations that require an authenticated caller but got none.
	KindAuth Kind = "AUTH"

	// KindValidation covers bad caller input, e.g. a rejection without notes.
	KindValidation Kind = "VALIDATION"

	// KindConflict covers state-guard violations: resolving a request that is no
	// longer pending, or submitting while another pending request exists.
	KindConflict Kind = "CONFLICT"

	// KindInternal covers store and downstream failures.
	KindInternal Kind = "INTERNAL"
)

// Error carries a kind plus a caller-facing message. It may wrap an underlying
// store error for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Auth builds a KindAuth error.
func Auth(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAuth, Msg: fmt.Sprintf(format, args...)}
}

// Validation builds a KindValidation error.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Conflict builds a KindConflict error.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Internal wraps an underlying failure as KindInternal.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
