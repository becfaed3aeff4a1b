// File: internal/session/manager.go
// Author: momentics <momentics@gmail.com>
//
// Manager is a directory of in-flight Sessions keyed by caller-supplied
// id. It replaces the old shard-by-fnv32 array: id-level contention is
// rare enough (tracking happens once per Acquire/Release pair, not per
// pool operation) that a single map guarded by a per-key row lock is
// simpler and just as concurrent for the id collision rate this sees.

package session

import (
	"sync"
	"time"

	"github.com/fishy/rowlock"
	"github.com/sorenvik/respool/api"
)

// Manager tracks Sessions by id for debug introspection and metrics.
type Manager[T any] struct {
	lock     *rowlock.RowLock
	mu       sync.RWMutex
	sessions map[string]*Session[T]
	ctxs     api.ContextFactory
}

// NewManager constructs an empty session directory using the default
// context factory.
func NewManager[T any]() *Manager[T] {
	return NewManagerWithContextFactory[T](defaultContextFactory{})
}

// NewManagerWithContextFactory constructs an empty session directory
// whose Sessions get their api.Context from ctxs instead of the plain
// default, letting callers inject propagation or tracing-aware contexts.
func NewManagerWithContextFactory[T any](ctxs api.ContextFactory) *Manager[T] {
	return &Manager[T]{
		lock:     rowlock.NewRowLock(rowlock.MutexNewLocker),
		sessions: make(map[string]*Session[T]),
		ctxs:     ctxs,
	}
}

// Track registers value under id and returns a Session whose Release
// both runs releasePool and removes the entry from the directory. If id
// is already tracked, the prior session is released first.
func (m *Manager[T]) Track(id string, value T, releasePool func()) *Session[T] {
	m.lock.Lock(id)
	defer m.lock.Unlock(id)

	m.mu.Lock()
	if prior, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		prior.Release()
		m.mu.Lock()
	}

	s := &Session[T]{
		id:         id,
		value:      value,
		ctx:        m.ctxs.NewContext(),
		acquiredAt: time.Now(),
	}
	s.release = func() {
		releasePool()
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
	}
	m.sessions[id] = s
	m.mu.Unlock()
	return s
}

// Get returns the session tracked under id, if any.
func (m *Manager[T]) Get(id string) (*Session[T], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Range calls fn for every currently tracked session. fn must not call
// back into Track or Release for the Manager it was given.
func (m *Manager[T]) Range(fn func(*Session[T])) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		fn(s)
	}
}

// Len reports how many sessions are currently tracked.
func (m *Manager[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
