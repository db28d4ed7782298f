package group

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oriumgames/systemgroup/internal/executor"
	"github.com/oriumgames/systemgroup/internal/fence"
	"github.com/oriumgames/systemgroup/internal/universe"
	"github.com/oriumgames/systemgroup/internal/world"
)

// newTestWorld builds a World with the given resources present, each
// holding its own id boxed as the resource value, and a matching Universe
// with descriptors for the same ids.
func newTestWorld(t *testing.T, resourceIDs ...universe.ResourceID) (*world.World, *universe.Universe) {
	t.Helper()
	w := world.New()
	u := universe.New()
	for _, id := range resourceIDs {
		require.NoError(t, w.AddResource(world.ResourceID(id), &resourceValue{id: id}))
		_, err := u.RegisterResource(universe.ResourceDescriptor{ID: id, Label: "r"})
		require.NoError(t, err)
	}
	return w, u
}

type resourceValue struct {
	id universe.ResourceID
}

// recordingRun returns a RunFunc that appends label to *order (guarded by
// mu) every time it runs, increments *calls, and signals its deferred fence
// before returning.
func recordingRun(label string, mu *sync.Mutex, order *[]string, calls *int32) universe.RunFunc {
	return func(value any, exclusive []any, shared []any, deferred func()) {
		atomic.AddInt32(calls, 1)
		mu.Lock()
		*order = append(*order, label)
		mu.Unlock()
		deferred()
	}
}

func newTestGroup(t *testing.T, w *world.World, u *universe.Universe) *SystemGroup {
	t.Helper()
	ex := executor.New(4)
	return New(t.Name(), ex, w, u, Options{})
}

// scheduleAndWait schedules one generation with no wait_on fences and
// blocks (with a test timeout) until its result fence signals.
func scheduleAndWait(t *testing.T, g *SystemGroup) {
	t.Helper()
	f := fence.New()
	require.NoError(t, g.Schedule(context.Background(), nil, f))
	waitOrFail(t, f, 2*time.Second)
}

func waitOrFail(t *testing.T, f *fence.Fence, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		f.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for fence")
	}
}
