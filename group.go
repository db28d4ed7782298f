package systemgroup

import (
	"context"

	"github.com/oriumgames/systemgroup/internal/executor"
	"github.com/oriumgames/systemgroup/internal/fence"
	"github.com/oriumgames/systemgroup/internal/group"
	"github.com/oriumgames/systemgroup/internal/world"
)

// Fence is a one-shot latch: reset permitted, signal wakes all waiters
// (spec.md §4.1). Callers pass Fences into Schedule's wait_on list and as
// the optional result-signal fence.
type Fence = fence.Fence

// NewFence returns a Fence in the unsignaled state.
func NewFence() *Fence { return fence.New() }

// TimelineSemaphore is a monotonically increasing 64-bit counter (spec.md
// §4.2), exposed for callers that want the same primitive the scheduler
// uses internally for its schedule semaphore.
type TimelineSemaphore = fence.TimelineSemaphore

// NewTimelineSemaphore returns a TimelineSemaphore with counter 0.
func NewTimelineSemaphore() *TimelineSemaphore { return fence.NewTimelineSemaphore() }

// World is the resource map collaborator of spec.md §6 ("World"). Out of
// scope per spec.md §1; exposed here only so callers can construct one to
// pass to Create.
type World = world.World

// NewWorld constructs an empty World.
func NewWorld() *World { return world.New() }

// Executor is the worker-pool collaborator of spec.md §6 ("Executor"). Out
// of scope per spec.md §1; exposed here only so callers can construct one
// to pass to Create.
type Executor = executor.Executor

// NewExecutor returns an Executor that runs at most width EnqueueTask
// commands concurrently. width <= 0 defaults to runtime.GOMAXPROCS(0).
func NewExecutor(width int) *Executor { return executor.New(width) }

// SystemContext is the per-instance runtime state of a system inside a
// SystemGroup (spec.md §4.3). The scheduler hands a *SystemContext to a
// system's CreateFunc unchanged, as an opaque value, so the system can later
// call SystemContext::get_group / get_generation (spec.md §6), and its
// Alloc/Resize/Remap/Free to reach its per-generation and system-persistent
// allocators.
type SystemContext = group.SystemContext

// AllocStrategy selects which arena backs a SystemContext.Alloc call
// (spec.md §4.3 "allocator(strategy)").
type AllocStrategy = group.AllocStrategy

const (
	// AllocTransient resets at the end of every run().
	AllocTransient = group.AllocTransient
	// AllocSingleGeneration resets once per completed generation.
	AllocSingleGeneration = group.AllocSingleGeneration
	// AllocMultiGeneration rotates across a 4-generation stride.
	AllocMultiGeneration = group.AllocMultiGeneration
	// AllocSystemPersistent never resets automatically; it lives for the
	// context's entire lifetime.
	AllocSystemPersistent = group.AllocSystemPersistent
)

// SystemGroup is the outer object of spec.md §4.5: it owns the dependency
// graph, the generation counter, the schedule semaphore, and the arena
// allocators, and exposes AddSystems/RemoveSystem/Schedule — the hard part
// and sole subject of spec.md.
type SystemGroup struct {
	inner *group.SystemGroup
}

// Create allocates a SystemGroup over world w, resolving system/resource
// ids against u and running generations on ex (spec.md §4.5 "init"). It
// increments w's group count.
func Create(label string, ex *Executor, w *World, u *Universe, opts ...SystemGroupOption) (*SystemGroup, error) {
	return &SystemGroup{inner: group.New(label, ex, w, u, buildOptions(opts))}, nil
}

// Destroy tears the group down. Fatal (panics) if a generation is still in
// flight or the graph has any remaining systems (spec.md §4.5 "deinit").
func Destroy(g *SystemGroup) {
	g.inner.Deinit()
}

// GetWorld returns the world this group schedules against.
func (g *SystemGroup) GetWorld() *World { return g.inner.World() }

// GetLabel returns the group's label.
func (g *SystemGroup) GetLabel() string { return g.inner.Label() }

// GetPool returns the executor this group submits command buffers to.
func (g *SystemGroup) GetPool() *Executor { return g.inner.Pool() }

// Generation returns the last completed generation number.
func (g *SystemGroup) Generation() uint64 { return g.inner.Generation() }

// AddSystems implements spec.md §4.5 "addSystems": locks the graph mutex,
// shared-locks the universe, preflights duplicate non-weak ids, adds each in
// turn, and on the first failure strong-removes every prior add in this
// call (fenced, blocking) before returning the error.
func (g *SystemGroup) AddSystems(ids []SystemID) error {
	return g.inner.AddSystems(ids)
}

// RemoveSystem implements spec.md §4.5 "removeSystem": locks the graph
// mutex; fatal if id is unknown or currently weak. If the group has an
// in-flight generation, destruction is deferred to the next recompile and
// fence is signaled then; otherwise fence is signaled immediately.
func (g *SystemGroup) RemoveSystem(id SystemID, fence *Fence) error {
	return g.inner.RemoveSystem(id, fence)
}

// Schedule implements spec.md §4.5 "schedule": takes the graph mutex, reads
// g = next_generation, increments next_generation, and enqueues exactly one
// ScheduleJob on the executor. The job waits on each fence in waitOn, waits
// for strict generational ordering, drives one generation to completion,
// and signals the optional result fence. The graph mutex is released
// before the job runs; Schedule itself never blocks on the generation.
func (g *SystemGroup) Schedule(ctx context.Context, waitOn []*Fence, signal *Fence) error {
	return g.inner.Schedule(ctx, waitOn, signal)
}
