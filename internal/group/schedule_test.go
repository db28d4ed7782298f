package group

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oriumgames/systemgroup/internal/fence"
	"github.com/oriumgames/systemgroup/internal/universe"
)

func TestSingleSystemTwoResources(t *testing.T) {
	// spec.md §8 scenario 1.
	w, u := newTestWorld(t, 1, 2)
	g := newTestGroup(t, w, u)

	var mu sync.Mutex
	var order []string
	var calls int32
	var resources [][]any

	_, err := u.RegisterSystem(universe.SystemDescriptor{
		ID: 1, Label: "S",
		ExclusiveResources: []universe.ResourceID{1},
		SharedResources:    []universe.ResourceID{2},
		Run: func(value any, exclusive []any, shared []any, deferred func()) {
			atomic.AddInt32(&calls, 1)
			mu.Lock()
			order = append(order, "S")
			resources = append(resources, append(append([]any{}, exclusive...), shared...))
			mu.Unlock()
			deferred()
		},
	})
	require.NoError(t, err)
	require.NoError(t, g.AddSystems([]universe.SystemID{1}))

	require.EqualValues(t, 0, g.Generation())
	scheduleAndWait(t, g)

	require.EqualValues(t, 1, calls)
	require.Equal(t, []string{"S"}, order)
	require.EqualValues(t, 1, g.Generation())
	require.EqualValues(t, 1, g.scheduleSem.Counter())

	got := resources[0]
	require.Len(t, got, 2)
	require.Equal(t, universe.ResourceID(1), got[0].(*resourceValue).id)
	require.Equal(t, universe.ResourceID(2), got[1].(*resourceValue).id)
}

func TestSchedulesRunInCallOrder(t *testing.T) {
	// spec.md §8 quantified invariant: for schedules s1 < s2 on the same
	// group, signal(s1) happens-before signal(s2). The schedule semaphore
	// forces run() invocations themselves to serialize in schedule order,
	// so recording each invocation's generation is a non-flaky witness:
	// observing the run order requires no cross-goroutine synchronization
	// beyond what the scheduler itself already guarantees.
	w, u := newTestWorld(t)
	g := newTestGroup(t, w, u)

	const n = 5
	var mu sync.Mutex
	var runOrder []int

	_, err := u.RegisterSystem(universe.SystemDescriptor{
		ID: 1, Label: "S",
		Run: func(value any, exclusive []any, shared []any, deferred func()) {
			ctx := value.(*SystemContext)
			mu.Lock()
			runOrder = append(runOrder, int(ctx.Generation()))
			mu.Unlock()
			deferred()
		},
		Create: func(ctxValue any) (any, error) { return ctxValue, nil },
	})
	require.NoError(t, err)
	require.NoError(t, g.AddSystems([]universe.SystemID{1}))

	fences := make([]*fence.Fence, n)
	for i := 0; i < n; i++ {
		fences[i] = fence.New()
		require.NoError(t, g.Schedule(context.Background(), nil, fences[i]))
	}
	waitOrFail(t, fences[n-1], 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, runOrder, n)
	for i := 0; i < n; i++ {
		require.Equal(t, i, runOrder[i], "generations must run strictly in schedule order")
	}
}
