package fence

import "sync"

// TimelineSemaphore is a 64-bit monotonically non-decreasing counter.
// Wait(v) blocks until the counter reaches or passes v; Signal(v) publishes
// a new counter value and wakes every waiter whose target has been reached
// (spec.md §4.2). Like Fence, waiting is emulated with a condition variable
// rather than a raw futex.
type TimelineSemaphore struct {
	mu      sync.Mutex
	cond    *sync.Cond
	counter uint64
}

// NewTimelineSemaphore returns a semaphore with counter 0.
func NewTimelineSemaphore() *TimelineSemaphore {
	s := &TimelineSemaphore{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Wait blocks until Counter() >= v.
func (s *TimelineSemaphore) Wait(v uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.counter < v {
		s.cond.Wait()
	}
}

// Signal advances the counter to v and wakes every waiter whose target is
// now satisfied. v must be strictly greater than the current counter value;
// violating this is a programmer error and panics, mirroring the
// precondition in spec.md §4.2.
func (s *TimelineSemaphore) Signal(v uint64) {
	s.mu.Lock()
	if v <= s.counter {
		s.mu.Unlock()
		panic("timeline semaphore: signal value must exceed current counter")
	}
	s.counter = v
	s.mu.Unlock()
	// All waiters share one condition variable; a wake is "filtered" in the
	// sense that every woken goroutine re-checks its own target against the
	// new counter value before returning from Wait.
	s.cond.Broadcast()
}

// Counter returns the current counter value.
func (s *TimelineSemaphore) Counter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// IsSignaled reports whether the counter has reached or passed v.
func (s *TimelineSemaphore) IsSignaled(v uint64) bool {
	return s.Counter() >= v
}
