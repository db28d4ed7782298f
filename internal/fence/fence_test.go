package fence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFenceSignalWakesWaiters(t *testing.T) {
	f := New()
	require.False(t, f.IsSignaled())

	var wg sync.WaitGroup
	const waiters = 8
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			defer wg.Done()
			f.Wait()
		}()
	}

	// give the waiters a chance to block before signaling.
	time.Sleep(10 * time.Millisecond)
	f.Signal()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiters did not wake after signal")
	}

	require.True(t, f.IsSignaled())
}

func TestFenceSignalIdempotent(t *testing.T) {
	f := New()
	f.Signal()
	f.Signal()
	require.True(t, f.IsSignaled())
}

func TestFenceResetRequiresNoWaiters(t *testing.T) {
	f := New()
	f.Signal()
	require.NotPanics(t, func() { f.Reset() })
	require.False(t, f.IsSignaled())
}

func TestFenceResetWithActiveWaitersPanics(t *testing.T) {
	f := New()
	go f.Wait()
	time.Sleep(10 * time.Millisecond)
	require.Panics(t, func() { f.Reset() })
	f.Signal()
}

func TestFenceWaitReturnsImmediatelyWhenAlreadySignaled(t *testing.T) {
	f := New()
	f.Signal()
	done := make(chan struct{})
	go func() {
		f.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait on already-signaled fence blocked")
	}
}
