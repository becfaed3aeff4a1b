package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sorenvik/respool/api"
	"github.com/sorenvik/respool/internal/clock"
)

// countingAllocator hands out sequential ints and records onAcquire /
// onDispose calls per value, so tests can assert exactly-once behavior
// (P2, P3) without peeking at pool internals.
type countingAllocator struct {
	mu        sync.Mutex
	created   []int
	acquired  map[int]int
	disposed  map[int]int
	failAfter int // if > 0, the failAfter'th Create call returns an error
	calls     int
	releases  map[int]api.ReleaseFunc
}

func newCountingAllocator() *countingAllocator {
	return &countingAllocator{
		acquired: make(map[int]int),
		disposed: make(map[int]int),
		releases: make(map[int]api.ReleaseFunc),
	}
}

func (a *countingAllocator) Create(release api.ReleaseFunc) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.failAfter > 0 && a.calls == a.failAfter {
		return 0, errors.New("simulated create failure")
	}
	v := a.calls
	a.created = append(a.created, v)
	a.releases[v] = release
	return v, nil
}

func (a *countingAllocator) OnAcquire(v int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acquired[v]++
}

func (a *countingAllocator) OnDispose(v int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disposed[v]++
}

func (a *countingAllocator) releaseOf(v int) api.ReleaseFunc {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.releases[v]
}

// thresholdValidator rejects a value once idle exceeds limit.
type thresholdValidator struct {
	limit time.Duration
}

func (v thresholdValidator) IsValid(_ int, idle time.Duration) bool {
	return idle <= v.limit
}

type alwaysValid struct{}

func (alwaysValid) IsValid(int, time.Duration) bool { return true }

// --- Scenario 1: zero value round-trip ---

func TestScenario_ZeroValueRoundTrip(t *testing.T) {
	alloc := newCountingAllocator()
	p := New[int](4, alloc, alwaysValid{}, clock.Monotonic{})
	defer p.Close()

	h := NewWorkerHandle[int]()
	v1, err := p.Acquire(h, time.Second)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	alloc.releaseOf(v1)()

	v2, err := p.Acquire(h, time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if v1 != v2 {
		t.Fatalf("fast path should reuse the same value, got %d then %d", v1, v2)
	}
	if alloc.calls != 1 {
		t.Fatalf("expected exactly 1 Create call, got %d", alloc.calls)
	}
}

// --- Scenario 2: capacity exhaustion, no overshoot, forward progress ---

func TestScenario_CapacityExhaustion(t *testing.T) {
	alloc := newCountingAllocator()
	p := New[int](2, alloc, alwaysValid{}, clock.Monotonic{})
	defer p.Close()

	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	run := func() {
		defer wg.Done()
		v, err := p.Acquire(nil, 200*time.Millisecond)
		if err != nil {
			return // TIMEOUT is an acceptable outcome for this scenario
		}
		n := atomic.AddInt32(&active, 1)
		for {
			cur := atomic.LoadInt32(&maxActive)
			if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		alloc.releaseOf(v)()
	}

	wg.Add(3)
	go run()
	go run()
	go run()
	wg.Wait()

	if maxActive > 2 {
		t.Fatalf("capacity invariant violated: saw %d concurrently active, capacity is 2", maxActive)
	}
}

// --- Scenario 3: invalidation on acquire disposes the stale value ---

func TestScenario_InvalidationOnAcquire(t *testing.T) {
	alloc := newCountingAllocator()
	fc := clock.NewFixed(0)
	p := New[int](4, alloc, thresholdValidator{limit: 30 * time.Millisecond}, fc)
	defer p.Close()

	h := NewWorkerHandle[int]()
	v1, err := p.Acquire(h, time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	alloc.releaseOf(v1)()

	fc.Advance(100 * time.Millisecond)

	v2, err := p.Acquire(h, time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if v2 == v1 {
		t.Fatalf("expected a fresh value after invalidation, got the same one back: %d", v1)
	}
	if alloc.disposed[v1] != 1 {
		t.Fatalf("expected exactly one dispose of the stale value, got %d", alloc.disposed[v1])
	}
}

// --- Scenario 4: close during hold resolves via the shutdown-race branch ---

func TestScenario_CloseDuringHold(t *testing.T) {
	alloc := newCountingAllocator()
	p := New[int](1, alloc, alwaysValid{}, clock.Monotonic{})

	v, err := p.Acquire(nil, time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	closeErr := make(chan error, 1)
	go func() { closeErr <- p.Close() }()

	time.Sleep(10 * time.Millisecond) // let Close observe the slot as CLAIMED
	alloc.releaseOf(v)()

	if err := <-closeErr; err != nil {
		t.Fatalf("close returned error: %v", err)
	}
	if alloc.disposed[v] != 1 {
		t.Fatalf("expected exactly one dispose for the held value, got %d", alloc.disposed[v])
	}
}

// --- Scenario 5: close during wait wakes the waiter with pool-closed ---

func TestScenario_CloseDuringWait(t *testing.T) {
	alloc := newCountingAllocator()
	p := New[int](1, alloc, alwaysValid{}, clock.Monotonic{})

	v, err := p.Acquire(nil, time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	waitErr := make(chan error, 1)
	start := time.Now()
	go func() {
		_, err := p.Acquire(nil, 10*time.Second)
		waitErr <- err
	}()

	time.Sleep(5 * time.Millisecond)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-waitErr:
		if !errors.Is(err, api.ErrPoolClosed) {
			t.Fatalf("expected ErrPoolClosed, got %v", err)
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Fatalf("waiter took %v to wake after close, want <= ~100ms", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never woke up after close")
	}

	alloc.releaseOf(v)()
}

// --- Scenario 6: allocator create failure recycles the index ---

func TestScenario_AllocatorCreateFailure(t *testing.T) {
	alloc := newCountingAllocator()
	alloc.failAfter = 3
	p := New[int](5, alloc, alwaysValid{}, clock.Monotonic{})
	defer p.Close()

	var got [5]int
	var errs [5]error
	for i := 0; i < 5; i++ {
		got[i], errs[i] = p.Acquire(nil, time.Second)
	}

	if errs[2] == nil {
		t.Fatal("expected the 3rd acquire to surface the allocator failure")
	}
	var ce *CreateError
	if !errors.As(errs[2], &ce) {
		t.Fatalf("expected a *CreateError, got %v (%T)", errs[2], errs[2])
	}
	if ce.Index != 2 {
		t.Fatalf("expected the failure to land on index 2, got %d", ce.Index)
	}
	for i, err := range errs {
		if i == 2 {
			continue
		}
		if err != nil {
			t.Fatalf("acquire %d: unexpected error %v", i, err)
		}
	}

	v6, err := p.Acquire(nil, time.Second)
	if err != nil {
		t.Fatalf("6th acquire should grow into the last free index, got error: %v", err)
	}
	if v6 == 0 {
		t.Fatal("6th acquire returned the zero value")
	}
}

// --- P1: capacity is never exceeded under concurrent load ---

func TestInvariant_CapacityNeverExceeded(t *testing.T) {
	const capacity = 4
	alloc := newCountingAllocator()
	p := New[int](capacity, alloc, alwaysValid{}, clock.Monotonic{})
	defer p.Close()

	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				v, err := p.Acquire(nil, time.Second)
				if err != nil {
					continue
				}
				n := atomic.AddInt32(&active, 1)
				for {
					cur := atomic.LoadInt32(&maxActive)
					if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
						break
					}
				}
				atomic.AddInt32(&active, -1)
				alloc.releaseOf(v)()
			}
		}()
	}
	wg.Wait()

	if maxActive > capacity {
		t.Fatalf("observed %d concurrently active values, capacity is %d", maxActive, capacity)
	}
}

// --- P5: close is idempotent ---

func TestInvariant_CloseIdempotent(t *testing.T) {
	alloc := newCountingAllocator()
	p := New[int](3, alloc, alwaysValid{}, clock.Monotonic{})

	if err := p.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	disposedAfterFirst := len(alloc.disposed)

	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if len(alloc.disposed) != disposedAfterFirst {
		t.Fatal("second close had additional observable effect")
	}
}

// --- P6: acquire fails fast, without blocking, once closed ---

func TestInvariant_AcquireFailsFastAfterClose(t *testing.T) {
	alloc := newCountingAllocator()
	p := New[int](2, alloc, alwaysValid{}, clock.Monotonic{})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	start := time.Now()
	_, err := p.Acquire(nil, 10*time.Second)
	elapsed := time.Since(start)

	if !errors.Is(err, api.ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
	if elapsed > 50*time.Millisecond {
		t.Fatalf("acquire on a closed pool took %v, want near-instant", elapsed)
	}
}

// --- P7: acquire honors its deadline within polling granularity ---

func TestInvariant_AcquireHonorsDeadline(t *testing.T) {
	alloc := newCountingAllocator()
	p := New[int](1, alloc, alwaysValid{}, clock.Monotonic{})
	defer p.Close()

	v, err := p.Acquire(nil, time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer alloc.releaseOf(v)()

	timeout := 50 * time.Millisecond
	start := time.Now()
	_, err = p.Acquire(nil, timeout)
	elapsed := time.Since(start)

	if !errors.Is(err, api.ErrAcquireTimeout) {
		t.Fatalf("expected ErrAcquireTimeout, got %v", err)
	}
	if elapsed < timeout || elapsed > timeout+50*time.Millisecond {
		t.Fatalf("elapsed %v, want within ~50ms of requested timeout %v", elapsed, timeout)
	}
}
