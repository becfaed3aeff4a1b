// File: internal/session/context.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe, propagation-aware key/value store satisfying api.Context.
// Consolidated from two near-duplicate implementations that had drifted
// apart over time.

package session

import (
	"sync"
	"time"

	"github.com/sorenvik/respool/api"
)

type entry struct {
	val        any
	propagated bool
	expiry     time.Time
}

// contextStore is the concrete api.Context every Session carries.
type contextStore struct {
	mu    sync.RWMutex
	store map[string]entry
}

var _ api.Context = (*contextStore)(nil)

// NewContextStore creates an empty, thread-safe context store.
func NewContextStore() api.Context {
	return &contextStore{store: make(map[string]entry)}
}

// defaultContextFactory produces plain contextStore instances. It is the
// api.ContextFactory every Manager uses unless a test supplies its own.
type defaultContextFactory struct{}

var _ api.ContextFactory = defaultContextFactory{}

func (defaultContextFactory) NewContext() api.Context { return NewContextStore() }

func (c *contextStore) Set(key string, value any, propagated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = entry{val: value, propagated: propagated}
}

func (c *contextStore) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	if !ok || (!e.expiry.IsZero() && time.Now().After(e.expiry)) {
		return nil, false
	}
	return e.val, true
}

func (c *contextStore) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

func (c *contextStore) Clone() api.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make(map[string]entry, len(c.store))
	for k, v := range c.store {
		cp[k] = v
	}
	return &contextStore{store: cp}
}

func (c *contextStore) WithExpiration(key string, ttlNanos int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.store[key]; ok {
		e.expiry = time.Now().Add(time.Duration(ttlNanos))
		c.store[key] = e
	}
}

func (c *contextStore) IsPropagated(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	return ok && e.propagated
}

func (c *contextStore) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.store))
	now := time.Now()
	for k, e := range c.store {
		if !e.expiry.IsZero() && now.After(e.expiry) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}
