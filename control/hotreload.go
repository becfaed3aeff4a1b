// control/hotreload.go
// Manages global hot-reload hooks for config changes.
// Adds a TriggerHotReloadSync for deterministic test notification.

package control

import (
	"sync"

	"github.com/sorenvik/respool/core/concurrency"
)

var (
	reloadMu    sync.Mutex
	reloadHooks []func()

	dispatchOnce sync.Once
	dispatcher   *concurrency.Executor
)

// hookDispatcher lazily starts a small bounded worker pool for fanning
// out reload notifications, instead of spawning one goroutine per hook
// per trigger (unbounded under a config source that reloads often).
func hookDispatcher() *concurrency.Executor {
	dispatchOnce.Do(func() {
		dispatcher = concurrency.NewExecutor(4, -1)
	})
	return dispatcher
}

// RegisterReloadHook adds a new component reload listener.
func RegisterReloadHook(fn func()) {
	reloadMu.Lock()
	reloadHooks = append(reloadHooks, fn)
	reloadMu.Unlock()
}

// TriggerHotReload dispatches all reload hooks across the shared worker
// pool. A hook that panics is recovered by the executor and does not
// prevent the others from running.
func TriggerHotReload() {
	reloadMu.Lock()
	hooks := append([]func(){}, reloadHooks...)
	reloadMu.Unlock()

	d := hookDispatcher()
	for _, fn := range hooks {
		_ = d.Submit(fn)
	}
}

// TriggerHotReloadSync invokes all reload hooks synchronously (for test determinism).
func TriggerHotReloadSync() {
	reloadMu.Lock()
	hooks := append([]func(){}, reloadHooks...)
	reloadMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
