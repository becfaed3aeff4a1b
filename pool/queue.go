// File: pool/queue.go
// Author: momentics <momentics@gmail.com>
//
// The two queues behind the pool. live is the hot path: a lock-free MPMC
// ring (Vyukov-style, grounded on core/concurrency.LockFreeQueue) holding
// hints that a slot may be AVAILABLE. disposed is off the hot path — slots
// only land there on dispose, which is already paying for an allocator
// callback — so a classic mutex-guarded FIFO from github.com/eapache/queue
// is the right tool instead of a second lock-free structure.

package pool

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/sorenvik/respool/core/concurrency"
)

type liveQueue[T any] struct {
	q *concurrency.LockFreeQueue[*slot[T]]
}

func newLiveQueue[T any](capacity int) *liveQueue[T] {
	return &liveQueue[T]{q: concurrency.NewLockFreeQueue[*slot[T]](capacity)}
}

func (l *liveQueue[T]) push(s *slot[T]) {
	// The ring is sized so that at most `capacity` slots are ever live at
	// once; Enqueue failing would mean more slots are AVAILABLE than the
	// pool has capacity for, which cannot happen (I5).
	if !l.q.Enqueue(s) {
		panic("pool: live queue overflow, capacity invariant violated")
	}
}

func (l *liveQueue[T]) pop() *slot[T] {
	s, ok := l.q.Dequeue()
	if !ok {
		return nil
	}
	return s
}

type disposedQueue[T any] struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newDisposedQueue[T any]() *disposedQueue[T] {
	return &disposedQueue[T]{q: queue.New()}
}

func (d *disposedQueue[T]) push(s *slot[T]) {
	d.mu.Lock()
	d.q.Add(s)
	d.mu.Unlock()
}

func (d *disposedQueue[T]) pop() *slot[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.q.Length() == 0 {
		return nil
	}
	return d.q.Remove().(*slot[T])
}
