// File: validation/validation.go
// Author: momentics <momentics@gmail.com>
//
// Stock api.ValidationStrategy[T] implementations. The pool only ever
// asks "is this value still good to hand out", so these compose by pure
// AND: all of them must agree a value is valid.

package validation

import (
	"time"

	"github.com/sorenvik/respool/api"
)

type maxIdle[T any] struct {
	limit time.Duration
}

// MaxIdle rejects a value once it has sat AVAILABLE for longer than
// limit. Pass the pool-supplied idle duration straight through; the
// pool reports 0 when it validates a value inside its release callback.
func MaxIdle[T any](limit time.Duration) api.ValidationStrategy[T] {
	return &maxIdle[T]{limit: limit}
}

func (m *maxIdle[T]) IsValid(_ T, idle time.Duration) bool {
	return idle <= m.limit
}

// Aged is implemented by values that can report their own creation time,
// letting MaxLifetime bound total age rather than idle time.
type Aged interface {
	CreatedAt() time.Time
}

type maxLifetime[T any] struct {
	limit time.Duration
}

// MaxLifetime rejects a value once it has existed longer than limit,
// for T implementing Aged. Values that don't implement Aged are always
// reported valid, since lifetime can't be established.
func MaxLifetime[T any](limit time.Duration) api.ValidationStrategy[T] {
	return &maxLifetime[T]{limit: limit}
}

func (m *maxLifetime[T]) IsValid(v T, _ time.Duration) bool {
	aged, ok := any(v).(Aged)
	if !ok {
		return true
	}
	return time.Since(aged.CreatedAt()) <= m.limit
}

// LivenessChecker is implemented by values that know how to check their
// own health, independent of idle time (e.g. a TCP connection that can
// be pinged). Liveness reports values that don't implement it as valid.
type LivenessChecker interface {
	IsAlive() bool
}

type liveness[T any] struct{}

// Liveness defers to T.IsAlive when T implements LivenessChecker, and
// otherwise always reports valid.
func Liveness[T any]() api.ValidationStrategy[T] {
	return &liveness[T]{}
}

func (liveness[T]) IsValid(v T, _ time.Duration) bool {
	if lc, ok := any(v).(LivenessChecker); ok {
		return lc.IsAlive()
	}
	return true
}

type all[T any] struct {
	strategies []api.ValidationStrategy[T]
}

// All composes several strategies: a value is valid only if every
// strategy agrees.
func All[T any](strategies ...api.ValidationStrategy[T]) api.ValidationStrategy[T] {
	return &all[T]{strategies: strategies}
}

func (a *all[T]) IsValid(v T, idle time.Duration) bool {
	for _, s := range a.strategies {
		if !s.IsValid(v, idle) {
			return false
		}
	}
	return true
}

type never[T any] struct{}

// Never always reports a value invalid, forcing a fresh one on every
// Acquire. Useful in tests exercising the dispose/recycle path.
func Never[T any]() api.ValidationStrategy[T] {
	return &never[T]{}
}

func (never[T]) IsValid(T, time.Duration) bool { return false }

type always[T any] struct{}

// Always reports every value valid, skipping validation entirely.
func Always[T any]() api.ValidationStrategy[T] {
	return &always[T]{}
}

func (always[T]) IsValid(T, time.Duration) bool { return true }
