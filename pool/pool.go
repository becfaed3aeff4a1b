// File: pool/pool.go
// Author: momentics <momentics@gmail.com>
//
// Pool is a bounded, lock-light thread-caching resource pool. Acquire
// walks, in priority order: the caller's worker-local slot, the live
// queue, the disposed queue, pool growth, and finally a bounded wait on
// the live queue. Release is driven by the allocator's release callback,
// not by a public method, and interlocks with Close via the publish-then
// -recheck pattern in onRelease.

package pool

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/fishy/errbatch"

	"github.com/sorenvik/respool/api"
)

// pollInterval bounds every wait against the live queue so a blocked
// Acquire re-checks the closed flag and the disposed queue at least this
// often; it is not configurable because deadline accuracy degrades with
// it, per spec P7.
const pollInterval = 10 * time.Millisecond

// CreateError wraps an Allocator.Create failure with the registry index
// that was reserved (and has already been disposed) for the attempt.
type CreateError struct {
	Index int
	Err   error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("pool: create failed for slot %d: %v", e.Index, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// Pool is a fixed-capacity, lock-light container of pooled values of type T.
type Pool[T any] struct {
	capacity  int32
	registry  []atomic.Pointer[slot[T]]
	highWater atomic.Int32
	live      *liveQueue[T]
	disposed  *disposedQueue[T]
	closed    atomic.Bool

	allocator api.Allocator[T]
	validator api.ValidationStrategy[T]
	clock     api.Clock

	stats poolStats
}

type poolStats struct {
	acquires atomic.Int64
	releases atomic.Int64
	creates  atomic.Int64
	disposes atomic.Int64
}

// New constructs a pool of the given capacity. The pool is empty until
// Acquire grows it; no values are created eagerly.
func New[T any](capacity int, allocator api.Allocator[T], validator api.ValidationStrategy[T], clock api.Clock) *Pool[T] {
	if capacity <= 0 {
		panic("pool: capacity must be positive")
	}
	return &Pool[T]{
		capacity:  int32(capacity),
		registry:  make([]atomic.Pointer[slot[T]], capacity),
		live:      newLiveQueue[T](capacity),
		disposed:  newDisposedQueue[T](),
		allocator: allocator,
		validator: validator,
		clock:     clock,
	}
}

// Capacity returns the configured upper bound on concurrently live values.
func (p *Pool[T]) Capacity() int { return int(p.capacity) }

// Acquire returns a claimed value, or api.ErrAcquireTimeout if none became
// available before timeout elapses, or api.ErrPoolClosed if Close has
// already returned from its first caller. handle should be obtained once
// per long-lived worker via NewWorkerHandle and reused across calls.
func (p *Pool[T]) Acquire(handle *WorkerHandle[T], timeout time.Duration) (T, error) {
	var zero T
	deadline := p.clock.Millis() + timeout.Milliseconds()

	// 1. Worker-local fast path.
	if handle != nil {
		if s := handle.cached.Load(); s != nil && s.tryClaim() {
			if p.validator.IsValid(s.value, s.idle()) {
				s.touch()
				p.stats.acquires.Add(1)
				p.allocator.OnAcquire(s.value)
				return s.value, nil
			}
			p.dispose(s)
		}
	}

	// 2. Global path.
	s, err := p.acquireGlobal(deadline)
	if err != nil {
		return zero, err
	}

	if handle != nil {
		handle.cached.Store(s)
	}
	p.stats.acquires.Add(1)
	p.allocator.OnAcquire(s.value)
	return s.value, nil
}

func (p *Pool[T]) acquireGlobal(deadline int64) (*slot[T], error) {
	candidate := p.live.pop()

	for {
		if p.closed.Load() {
			return nil, api.ErrPoolClosed
		}

		if candidate != nil {
			if candidate.tryClaim() {
				if p.validator.IsValid(candidate.value, candidate.idle()) {
					return candidate, nil
				}
				p.dispose(candidate)
				candidate = nil
				continue
			}
			// Lost the race for this hint; another claimer won it.
			candidate = nil
			continue
		}

		if recycled := p.disposed.pop(); recycled != nil {
			s, err := p.allocateNew(int(recycled.index))
			if err != nil {
				return nil, err
			}
			return s, nil
		}

		if idx := p.highWater.Load(); idx < p.capacity {
			if p.highWater.CompareAndSwap(idx, idx+1) {
				s, err := p.allocateNew(int(idx))
				if err != nil {
					return nil, err
				}
				return s, nil
			}
			continue
		}

		timeLeft := deadline - p.clock.Millis()
		if timeLeft <= 0 {
			return nil, api.ErrAcquireTimeout
		}
		wait := pollInterval
		if timeLeft < wait.Milliseconds() {
			wait = time.Duration(timeLeft) * time.Millisecond
		}
		candidate = p.waitLive(wait)
	}
}

// waitLive polls the live queue for up to d, sleeping between polls so the
// loop above periodically re-checks the closed flag and disposed queue
// (the disposed queue has no blocking-wake primitive of its own).
func (p *Pool[T]) waitLive(d time.Duration) *slot[T] {
	deadline := time.Now().Add(d)
	for {
		if s := p.live.pop(); s != nil {
			return s
		}
		if time.Now().After(deadline) {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
}

// dispose requires the caller to hold slot CLAIMED. It pushes the slot to
// the disposed queue before invoking onDispose, so the index stays
// recyclable even if onDispose itself misbehaves.
func (p *Pool[T]) dispose(s *slot[T]) {
	if !s.tryDispose() {
		log.Printf("pool: dispose called on slot %d not in CLAIMED state", s.index)
		return
	}
	p.disposed.push(s)
	p.stats.disposes.Add(1)
	p.allocator.OnDispose(s.value)
}

// allocateNew installs a CLAIMED slot at index and asks the allocator to
// create a value bound to that slot's release callback. On failure the
// index is immediately marked disposed and pushed to the disposed queue
// so it remains recyclable; the growth counter is never rolled back.
func (p *Pool[T]) allocateNew(index int) (*slot[T], error) {
	s := newSlot[T](int32(index), p.clock)
	p.registry[index].Store(s)

	value, err := p.allocator.Create(p.releaseFuncFor(s))
	if err != nil {
		s.state.Store(int32(stateDisposed))
		p.disposed.push(s)
		return nil, &CreateError{Index: index, Err: err}
	}
	s.value = value
	s.touch()
	p.stats.creates.Add(1)
	return s, nil
}

// releaseFuncFor returns the exactly-once release callback handed to the
// allocator for slot s. It implements §4.3: update lastUsed, validate,
// publish AVAILABLE (or dispose), then re-check the closed flag to settle
// the shutdown race with Close.
func (p *Pool[T]) releaseFuncFor(s *slot[T]) api.ReleaseFunc {
	return func() {
		s.touch()
		p.stats.releases.Add(1)

		if !p.validator.IsValid(s.value, 0) {
			p.dispose(s)
			return
		}

		if !s.tryRelease() {
			log.Printf("pool: release called on slot %d not in CLAIMED state", s.index)
			return
		}

		if !p.closed.Load() {
			p.live.push(s)
			return
		}

		// Close may have started between our publish above and this
		// check. Try to reclaim our own slot; if we win, we dispose it
		// ourselves. If we lose, the closer (or another releaser) already
		// did.
		if s.tryClaim() {
			p.dispose(s)
		}
	}
}

// Close idempotently shuts the pool down: only the first caller executes
// the body. It claims and disposes every slot it can; slots currently
// CLAIMED by an in-flight worker are left for that worker's release
// callback to dispose via the shutdown-race branch above. A panic raised
// while disposing a slot is recovered, and all such panics are aggregated
// into the returned error.
func (p *Pool[T]) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	batch := &errbatch.ErrBatch{}
	n := p.highWater.Load()
	for i := int32(0); i < n; i++ {
		s := p.registry[i].Load()
		if s == nil {
			continue
		}
		if s.tryClaim() {
			func() {
				defer func() {
					if r := recover(); r != nil {
						batch.Add(fmt.Errorf("pool: panic disposing slot %d: %v", s.index, r))
					}
				}()
				p.dispose(s)
			}()
		}
	}
	return batch.Compile()
}

// Stats returns a snapshot of acquire/release/create/dispose counters.
type Stats struct {
	Acquires int64
	Releases int64
	Creates  int64
	Disposes int64
	Active   int64
}

func (p *Pool[T]) Stats() Stats {
	acq := p.stats.acquires.Load()
	rel := p.stats.releases.Load()
	cre := p.stats.creates.Load()
	dis := p.stats.disposes.Load()
	return Stats{
		Acquires: acq,
		Releases: rel,
		Creates:  cre,
		Disposes: dis,
		Active:   acq - rel,
	}
}
