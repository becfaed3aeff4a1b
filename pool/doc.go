// Package pool
// Author: momentics <momentics@gmail.com>
//
// A bounded, lock-light thread-caching resource pool. Lends reusable
// expensive-to-create values (network connections, sessions) to concurrent
// callers and recycles them on release. No background reaper: every
// lifecycle transition is driven synchronously by Acquire, the allocator's
// release callback, or Close.
//
// See pool.go for the state machine and acquire/release/close protocols.
package pool
