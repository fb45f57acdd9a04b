// Package lazy provides a compute-once value for deferred, possibly slow,
// computations. The first Get that completes runs the function; every later
// Get, concurrent or not, observes the same result and error.
package lazy

import (
	"context"
	"errors"
	"sync"
)

// Func computes a value
type Func[T any] func(ctx context.Context) (T, error)

// Value is a memoized Func. The zero value is not usable; use New or Of.
type Value[T any] struct {
	mu   sync.Mutex
	done bool
	fn   Func[T]
	val  T
	err  error
}

// New wraps fn so that it runs at most once to completion
func New[T any](fn Func[T]) *Value[T] {
	return &Value[T]{fn: fn}
}

// Of returns an already-resolved value
func Of[T any](v T) *Value[T] {
	return &Value[T]{val: v, done: true}
}

// Get returns the memoized result, running the function on first use.
// Concurrent callers wait for the running call. A run that fails because the
// caller's context ended is not remembered, so the next Get tries again
// under its own context.
func (l *Value[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done {
		return l.val, l.err
	}
	val, err := l.fn(ctx)
	if err != nil && ctx.Err() != nil && isContextErr(err) {
		return val, err
	}
	l.val, l.err, l.done = val, err, true
	return l.val, l.err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
