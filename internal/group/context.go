package group

import (
	"fmt"

	"github.com/oriumgames/systemgroup/internal/allocator"
	"github.com/oriumgames/systemgroup/internal/apierr"
	"github.com/oriumgames/systemgroup/internal/fence"
	"github.com/oriumgames/systemgroup/internal/universe"
)

// AllocStrategy selects which arena backs a SystemContext.Alloc call
// (spec.md §4.3 "allocator(strategy)").
type AllocStrategy int

const (
	// AllocTransient resets at the end of every run().
	AllocTransient AllocStrategy = iota
	// AllocSingleGeneration resets once per completed generation.
	AllocSingleGeneration
	// AllocMultiGeneration rotates across a 4-generation stride.
	AllocMultiGeneration
	// AllocSystemPersistent never resets automatically; it lives for the
	// context's entire lifetime and is reclaimed only when the context is
	// deinited (spec.md §4.3 "system-persistent (context's tracing
	// allocator)").
	AllocSystemPersistent
)

// membership tags a SystemContext as strong or weak (spec.md §3, §9: "a
// tagged variant per context" rather than a bare bool). incomingStrongRefs
// is not updated anywhere; whether a weak context can be unloaded is
// decided from its referencedBy set (see isUnloadable).
type membership struct {
	weak               bool
	incomingStrongRefs uint32
}

// SystemContext is the per-instance runtime state of one system inside a
// Graph (spec.md §4.3).
type SystemContext struct {
	graph      *Graph
	descriptor *universe.SystemDescriptor

	member membership

	references   map[*SystemContext]struct{}
	referencedBy map[*SystemContext]struct{}

	value any

	resources []any

	deferredFence *fence.Fence
	mergeDeferred bool
	deferredDeps  []*SystemContext

	transient  *allocator.Transient
	persistent *allocator.Persistent
	waiters    []*fence.Fence

	deinitPending bool
}

// newSystemContext constructs a context for descriptor inside g. It does not
// yet add edges to already-present neighbors or call the user factory; those
// happen in init, which can fail and must roll back.
func newSystemContext(g *Graph, descriptor *universe.SystemDescriptor, weak bool) *SystemContext {
	return &SystemContext{
		graph:         g,
		descriptor:    descriptor,
		member:        membership{weak: weak},
		references:    make(map[*SystemContext]struct{}),
		referencedBy:  make(map[*SystemContext]struct{}),
		resources:     make([]any, len(descriptor.ExclusiveResources)+len(descriptor.SharedResources)),
		deferredFence: fence.New(),
		transient:     allocator.NewTransient(),
		persistent:    allocator.NewPersistent(),
	}
}

// init wires outbound edges to already-present neighbors (weak or strong,
// covering the dependencies addSystem has just weak-added) and runs the
// user factory (spec.md §4.3 "init"). ctxValue is this context passed back to
// CreateFunc as the opaque scheduler handle.
func (c *SystemContext) init() error {
	added := make([]*SystemContext, 0, len(c.descriptor.Before)+len(c.descriptor.After))
	for _, dep := range c.descriptor.Before {
		if neighbor, ok := c.graph.systems[dep.Target]; ok {
			c.addReference(neighbor)
			added = append(added, neighbor)
		}
	}
	for _, dep := range c.descriptor.After {
		if neighbor, ok := c.graph.systems[dep.Target]; ok {
			c.addReference(neighbor)
			added = append(added, neighbor)
		}
	}

	if c.descriptor.Create != nil {
		value, err := c.descriptor.Create(c)
		if err != nil {
			for _, neighbor := range added {
				c.removeReference(neighbor)
			}
			return apierr.Wrap(apierr.KindInitFailed, fmt.Sprintf("system %d", c.descriptor.ID), err)
		}
		c.value = value
	}

	c.descriptor.AddRef()
	return nil
}

// addReference records that c depends on other, updating both adjacency
// sides. Deduplicated: calling it twice for the same pair is a no-op on the
// second call.
func (c *SystemContext) addReference(other *SystemContext) {
	if _, ok := c.references[other]; ok {
		return
	}
	c.references[other] = struct{}{}
	other.referencedBy[c] = struct{}{}
}

// removeReference is the inverse of addReference. Both sides must currently
// contain the other; violating that is a programmer error.
func (c *SystemContext) removeReference(other *SystemContext) {
	if _, ok := c.references[other]; !ok {
		panic("group: removeReference on a pair that was never referenced")
	}
	if _, ok := other.referencedBy[c]; !ok {
		panic("group: removeReference found an inconsistent adjacency pair")
	}
	delete(c.references, other)
	delete(other.referencedBy, c)
}

// isUnloadable reports whether this context is weak with no remaining
// referrers, i.e. eligible for BFS collection during removeSystem.
func (c *SystemContext) isUnloadable() bool {
	return c.member.weak && len(c.referencedBy) == 0
}

// run executes one generation for this system (spec.md §4.3 "run").
// exclusive/shared pointers must already be populated into c.resources by
// Graph.acquireResources before this is called.
func (c *SystemContext) run() {
	c.deferredFence.Reset()

	for _, dep := range c.deferredDeps {
		dep.deferredFence.Wait()
	}

	exclusive := c.resources[:len(c.descriptor.ExclusiveResources)]
	shared := c.resources[len(c.descriptor.ExclusiveResources):]

	diag := c.graph.group.opts.Diagnostics
	generation := c.graph.group.Generation()
	diag.SystemStart(c.descriptor.Label, generation)
	if c.descriptor.Run != nil {
		c.descriptor.Run(c.value, exclusive, shared, c.deferredFence.Signal)
	}
	diag.SystemEnd(c.descriptor.Label, generation, nil)

	c.transient.ResetRun()

	if c.mergeDeferred {
		c.deferredFence.Wait()
	}
}

// allocator dispatches to the arena backing strategy (spec.md §4.3
// "allocator(strategy)"). transient/single/multi go through the
// corresponding context- or group-scoped arena; system-persistent is served
// by this context's own tracing allocator, which it owns for its entire
// lifetime.
func (c *SystemContext) allocator(strategy AllocStrategy) interface{ Alloc(int) []byte } {
	switch strategy {
	case AllocTransient:
		return c.transient
	case AllocSingleGeneration:
		return c.graph.group.singleGen
	case AllocMultiGeneration:
		return c.graph.group.multiGen
	case AllocSystemPersistent:
		return c.persistent
	default:
		panic(fmt.Sprintf("group: unknown allocator strategy %d", strategy))
	}
}

// Alloc carves size bytes from the arena backing strategy (spec.md §6
// "SystemContext::alloc/resize/remap/free(strategy, …)").
func (c *SystemContext) Alloc(strategy AllocStrategy, size int) []byte {
	return c.allocator(strategy).Alloc(size)
}

// Resize changes buf's length, preserving its contents. Shrinking trims buf
// in place; growing delegates to Remap, since a bump allocator cannot
// extend the most recent allocation without risking an overlap with
// whatever else was carved from the same arena in between.
func (c *SystemContext) Resize(strategy AllocStrategy, buf []byte, newSize int) []byte {
	if newSize <= len(buf) {
		return buf[:newSize]
	}
	return c.Remap(strategy, buf, newSize)
}

// Remap allocates a new newSize-byte block from strategy's arena and copies
// buf's contents into it, mirroring a realloc that may move (spec.md §6).
// The old block is left for the arena's next bulk Reset/Advance to reclaim.
func (c *SystemContext) Remap(strategy AllocStrategy, buf []byte, newSize int) []byte {
	grown := c.allocator(strategy).Alloc(newSize)
	copy(grown, buf)
	return grown
}

// Free is a no-op: arenas only reclaim in bulk via Reset/AdvanceGeneration
// (internal/allocator), and Go's garbage collector handles the rest once
// nothing references buf. Exposed so callers porting code that calls
// free(strategy, ptr) have somewhere to put that call.
func (c *SystemContext) Free(strategy AllocStrategy, buf []byte) {}

// appendWaiter pushes f onto the list of fences signaled when this context is
// finally torn down (spec.md §4.3 "appendWaiter").
func (c *SystemContext) appendWaiter(f *fence.Fence) {
	c.waiters = append(c.waiters, f)
}

// deinit tears the context down: asserts it has no remaining edges, invokes
// the user destructor, signals every waiter, and releases its descriptor
// reference (spec.md §4.3 "deinit").
func (c *SystemContext) deinit() {
	if len(c.references) != 0 || len(c.referencedBy) != 0 {
		panic("group: deinit called on a context with live edges")
	}
	if c.descriptor.Deinit != nil {
		c.descriptor.Deinit(c.value)
	}
	for _, w := range c.waiters {
		w.Signal()
	}
	c.waiters = nil
	c.descriptor.Release()
}

// Group exposes the owning Graph's SystemGroup to user code holding a
// *SystemContext (spec.md §6 "SystemContext::get_group").
func (c *SystemContext) Group() *SystemGroup { return c.graph.group }

// Generation exposes the owning group's last-completed generation number
// (spec.md §6 "SystemContext::get_generation").
func (c *SystemContext) Generation() uint64 { return c.graph.group.Generation() }
