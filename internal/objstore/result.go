package objstore

import (
	"errors"
	"fmt"
)

// Error kinds reported by failed results.
var (
	ErrAlreadyExists       = errors.New("already exists")
	ErrNotFound            = errors.New("branch not found")
	ErrCannotRemoveCurrent = errors.New("cannot remove current branch")
	ErrNotCommitted        = errors.New("object not committed")
	ErrNothingToCommit     = errors.New("nothing to commit")
	ErrNoCommitsYet        = errors.New("no commits yet")
	ErrCommitNotFound      = errors.New("commit not found")
)

// Error is the error form of a failed Result. It unwraps to its kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Result is the outcome of every store operation. A successful result may
// carry a value; a failed one carries only its message and kind.
type Result[T any] struct {
	ok      bool
	message string
	value   T
	kind    error
}

func success[T any](value T, format string, args ...any) Result[T] {
	return Result[T]{ok: true, message: fmt.Sprintf(format, args...), value: value}
}

func failure[T any](kind error, format string, args ...any) Result[T] {
	return Result[T]{message: fmt.Sprintf(format, args...), kind: kind}
}

// OK reports whether the operation succeeded.
func (r Result[T]) OK() bool { return r.ok }

// Message is the human-readable outcome.
func (r Result[T]) Message() string { return r.message }

// Value returns the payload, or the zero value for failures.
func (r Result[T]) Value() T { return r.value }

// Err returns nil on success and an *Error otherwise.
func (r Result[T]) Err() error {
	if r.ok {
		return nil
	}
	return &Error{Kind: r.kind, Message: r.message}
}

func (r Result[T]) String() string { return r.message }
