// Package fence implements the leaf synchronization primitives the system
// group is built on: a one-shot latch (Fence) and a monotonic counting
// latch (TimelineSemaphore). Both are specified in terms of a raw futex
// contract (wait on a word until it changes, wake waiters); Go has no
// portable futex syscall, so waiting is emulated with a condition variable,
// following the emulated-bucket technique in the twmb-dash futex package
// (experimental/futex/futex.go) simplified to a single owned address per
// instance instead of a global bucket table, since each Fence/TimelineSemaphore
// already owns its own lock.
package fence

import "sync"

// state values for Fence, stored in a single byte per spec.md §4.1.
const (
	unsignaled byte = iota
	signaled
	contended
)

// Fence is a one-shot latch. Signal is idempotent; Reset requires that no
// goroutine is currently blocked in Wait, and panics otherwise — resetting a
// fence with active waiters is a programmer error (spec.md §4.1).
type Fence struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state byte
}

// New returns a Fence in the unsignaled state.
func New() *Fence {
	f := &Fence{state: unsignaled}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Wait blocks until the fence is signaled. A signal happens-before the
// return of every Wait observing it.
func (f *Fence) Wait() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.state != signaled {
		f.state = contended
		f.cond.Wait()
	}
}

// Signal marks the fence signaled and wakes every blocked waiter. Calling
// Signal more than once is a no-op on the second and later calls.
func (f *Fence) Signal() {
	f.mu.Lock()
	wasContended := f.state == contended
	f.state = signaled
	f.mu.Unlock()
	if wasContended {
		f.cond.Broadcast()
	}
}

// Reset clears the signaled state for reuse. It is a fatal programmer error
// to reset a fence while any goroutine is blocked in Wait.
func (f *Fence) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == contended {
		panic("fence: reset called while waiters are active")
	}
	f.state = unsignaled
}

// IsSignaled reports whether the fence has been signaled.
func (f *Fence) IsSignaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == signaled
}
