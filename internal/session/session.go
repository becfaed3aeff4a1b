// File: internal/session/session.go
// Author: momentics <momentics@gmail.com>

package session

import (
	"sync"
	"time"

	"github.com/sorenvik/respool/api"
)

// Session wraps one pooled value under a caller-supplied id, for the
// lifetime between a Manager.Track call and the matching Release.
type Session[T any] struct {
	id         string
	value      T
	ctx        api.Context
	acquiredAt time.Time
	release    func()
	once       sync.Once
}

// ID returns the session's tracking id.
func (s *Session[T]) ID() string { return s.id }

// Value returns the pooled value this session wraps.
func (s *Session[T]) Value() T { return s.value }

// Context returns the session's propagation-aware key/value store.
func (s *Session[T]) Context() api.Context { return s.ctx }

// AcquiredAt reports when the session started tracking its value.
func (s *Session[T]) AcquiredAt() time.Time { return s.acquiredAt }

// Release untracks the session and runs the underlying pool release
// exactly once, regardless of how many times Release is called.
func (s *Session[T]) Release() {
	s.once.Do(s.release)
}
