package group

import (
	"fmt"
	"sort"

	"github.com/oriumgames/systemgroup/internal/allocator"
	"github.com/oriumgames/systemgroup/internal/apierr"
	"github.com/oriumgames/systemgroup/internal/fence"
	"github.com/oriumgames/systemgroup/internal/universe"
	"github.com/oriumgames/systemgroup/internal/world"
)

// predecessor is one edge "target must complete before from runs",
// normalized from either an explicit After declaration on from or a Before
// declaration on target naming from — the two are the same relationship
// seen from opposite ends, and graph.go treats them uniformly everywhere an
// edge is walked (topological sort, synchronization injection, deferred_dep
// population). spec.md §4.4.3 step 7 speaks only of "after edges"; without
// this normalization a Before-only declaration would never gain a command
// wait, which would let the two sides of it run concurrently. See DESIGN.md.
type predecessor struct {
	target         *SystemContext
	ignoreDeferred bool
}

// Graph holds the mutable dependency graph of one SystemGroup (spec.md
// §4.4): systems, a dirty flag, and the compiled plan produced by recompile.
type Graph struct {
	group    *SystemGroup
	universe *universe.Universe
	world    *world.World

	systems     map[universe.SystemID]*SystemContext
	insertOrder []universe.SystemID

	dirty      bool
	deinitList []*SystemContext

	resources map[universe.ResourceID]struct{}
	arena     *allocator.Arena

	plan *Plan

	acquiredIDs    []universe.ResourceID
	acquiredValues map[universe.ResourceID]any
}

func newGraph(g *SystemGroup, u *universe.Universe, w *world.World) *Graph {
	return &Graph{
		group:     g,
		universe:  u,
		world:     w,
		systems:   make(map[universe.SystemID]*SystemContext),
		resources: make(map[universe.ResourceID]struct{}),
		arena:     allocator.NewArena(256),
	}
}

// addSystem implements spec.md §4.4.1. It returns the (possibly
// newly-promoted) context for id.
func (g *Graph) addSystem(id universe.SystemID, weak bool) (*SystemContext, error) {
	if existing, ok := g.systems[id]; ok {
		if !weak && existing.member.weak {
			existing.member.weak = false
		}
		return existing, nil
	}

	desc, ok := g.universe.System(id)
	if !ok {
		return nil, apierr.Wrap(apierr.KindNotFound, "unknown system", fmt.Errorf("system %d", id))
	}

	added := make([]*SystemContext, 0, len(desc.Before)+len(desc.After))
	rollback := func() {
		for i := len(added) - 1; i >= 0; i-- {
			g.collapseIfUnloadable(added[i])
		}
	}

	for _, dep := range desc.Before {
		n, err := g.addSystem(dep.Target, true)
		if err != nil {
			rollback()
			return nil, err
		}
		added = append(added, n)
	}
	for _, dep := range desc.After {
		n, err := g.addSystem(dep.Target, true)
		if err != nil {
			rollback()
			return nil, err
		}
		added = append(added, n)
	}

	ctx := newSystemContext(g, desc, weak)
	if err := ctx.init(); err != nil {
		rollback()
		return nil, err
	}

	g.systems[id] = ctx
	g.insertOrder = append(g.insertOrder, id)
	g.dirty = true
	return ctx, nil
}

// collapseIfUnloadable destroys ctx, and transitively any weak neighbor it
// was the last referrer of, if ctx itself has become unloadable. Used by
// addSystem's failure rollback; removeSystem runs its own BFS.
func (g *Graph) collapseIfUnloadable(ctx *SystemContext) {
	if !ctx.isUnloadable() {
		return
	}
	queue := []*SystemContext{ctx}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, present := g.findByContext(cur); !present {
			continue
		}
		g.removeFromSystems(cur)
		refs := make([]*SystemContext, 0, len(cur.references))
		for other := range cur.references {
			refs = append(refs, other)
		}
		for _, other := range refs {
			cur.removeReference(other)
			if other.isUnloadable() {
				queue = append(queue, other)
			}
		}
		cur.deinit()
	}
}

func (g *Graph) findByContext(ctx *SystemContext) (universe.SystemID, bool) {
	for id, c := range g.systems {
		if c == ctx {
			return id, true
		}
	}
	return 0, false
}

func (g *Graph) removeFromSystems(ctx *SystemContext) {
	id, ok := g.findByContext(ctx)
	if !ok {
		return
	}
	delete(g.systems, id)
	for i, oid := range g.insertOrder {
		if oid == id {
			g.insertOrder = append(g.insertOrder[:i], g.insertOrder[i+1:]...)
			break
		}
	}
}

// removeSystem implements spec.md §4.4.2. f may be nil; allowDeferred gates
// whether destruction of an in-flight context is deferred to the next
// recompile instead of happening synchronously.
func (g *Graph) removeSystem(id universe.SystemID, f *fence.Fence, allowDeferred bool) error {
	root, ok := g.systems[id]
	if !ok {
		if f != nil {
			panic(fmt.Sprintf("group: removeSystem on unknown system %d with a non-nil fence", id))
		}
		return apierr.Wrap(apierr.KindNotFound, "unknown system", fmt.Errorf("system %d", id))
	}

	g.removeFromSystems(root)

	toDestroy := []*SystemContext{root}
	queue := []*SystemContext{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		refs := make([]*SystemContext, 0, len(cur.references))
		for other := range cur.references {
			refs = append(refs, other)
		}
		for _, other := range refs {
			cur.removeReference(other)
			if other.isUnloadable() {
				g.removeFromSystems(other)
				toDestroy = append(toDestroy, other)
				queue = append(queue, other)
			}
		}
	}

	inFlight := g.group.inFlightLocked()
	for _, ctx := range toDestroy {
		isRoot := ctx == root
		if inFlight && allowDeferred {
			if isRoot && f != nil {
				ctx.appendWaiter(f)
			}
			ctx.deinitPending = true
			g.deinitList = append(g.deinitList, ctx)
			continue
		}
		ctx.deinit()
		if isRoot && f != nil {
			f.Signal()
		}
	}

	g.dirty = true
	return nil
}

// recompile implements spec.md §4.4.3. It is a no-op unless dirty.
func (g *Graph) recompile() {
	if !g.dirty {
		return
	}

	// Step 1: drain the deinit list.
	for _, ctx := range g.deinitList {
		ctx.deinit()
	}
	g.deinitList = nil

	// Step 2: reset the graph arena, rebuild the resource union.
	g.arena.Reset()
	g.arena.Alloc(len(g.systems) * 8)
	g.resources = make(map[universe.ResourceID]struct{})
	for _, ctx := range g.systems {
		for _, r := range ctx.descriptor.ExclusiveResources {
			g.resources[r] = struct{}{}
		}
		for _, r := range ctx.descriptor.SharedResources {
			g.resources[r] = struct{}{}
		}
	}

	predecessorsOf := g.buildPredecessors()

	// Step 3/4: merge_deferred + deferred_dep.
	for id, ctx := range g.systems {
		ctx.mergeDeferred = !g.hasDeferredDependent(id)
		ctx.deferredDeps = ctx.deferredDeps[:0]
		for _, p := range predecessorsOf[id] {
			if !p.ignoreDeferred {
				ctx.deferredDeps = append(ctx.deferredDeps, p.target)
			}
		}
	}

	// Step 5: resources arrays are already sized in newSystemContext.

	// Step 6: topological sort by generation, ties broken by insertion order.
	order := g.topoSort(predecessorsOf)

	// Step 7: synchronization injection.
	g.plan = buildPlan(order, predecessorsOf)

	g.dirty = false
}

// buildPredecessors normalizes every After declaration and every reciprocal
// Before declaration into a predecessor list keyed by the dependent system's
// id.
func (g *Graph) buildPredecessors() map[universe.SystemID][]predecessor {
	out := make(map[universe.SystemID][]predecessor, len(g.systems))
	addEdge := func(from, to universe.SystemID, ignoreDeferred bool) {
		targetCtx, ok := g.systems[to]
		if !ok {
			return
		}
		out[from] = append(out[from], predecessor{target: targetCtx, ignoreDeferred: ignoreDeferred})
	}
	for id, ctx := range g.systems {
		for _, dep := range ctx.descriptor.After {
			addEdge(id, dep.Target, dep.IgnoreDeferred)
		}
		for _, dep := range ctx.descriptor.Before {
			if _, ok := g.systems[dep.Target]; ok {
				addEdge(dep.Target, id, dep.IgnoreDeferred)
			}
		}
	}
	return out
}

// hasDeferredDependent reports whether any edge incident on id (from either
// direction) requires id's deferred fence, using the stricter reading of
// the merge_deferred Open Question in spec.md §9: an incoming edge from
// either side with ignore_deferred=false forbids merging.
func (g *Graph) hasDeferredDependent(id universe.SystemID) bool {
	ctx := g.systems[id]
	for _, dep := range ctx.descriptor.Before {
		if !dep.IgnoreDeferred {
			if _, ok := g.systems[dep.Target]; ok {
				return true
			}
		}
	}
	for otherID, other := range g.systems {
		if otherID == id {
			continue
		}
		for _, dep := range other.descriptor.After {
			if dep.Target == id && !dep.IgnoreDeferred {
				return true
			}
		}
	}
	return false
}

func (g *Graph) topoSort(predecessorsOf map[universe.SystemID][]predecessor) []*SystemContext {
	generation := make(map[universe.SystemID]int, len(g.systems))
	visiting := make(map[universe.SystemID]bool, len(g.systems))

	var assign func(id universe.SystemID) int
	assign = func(id universe.SystemID) int {
		if gen, ok := generation[id]; ok {
			return gen
		}
		if visiting[id] {
			panic(fmt.Sprintf("group: cycle detected at system %d during recompile", id))
		}
		visiting[id] = true
		max := -1
		for _, p := range predecessorsOf[id] {
			pid, _ := g.findByContext(p.target)
			if gen := assign(pid); gen > max {
				max = gen
			}
		}
		visiting[id] = false
		gen := max + 1
		generation[id] = gen
		return gen
	}

	for id := range g.systems {
		assign(id)
	}

	ordered := append([]universe.SystemID(nil), g.insertOrder...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return generation[ordered[i]] < generation[ordered[j]]
	})

	out := make([]*SystemContext, 0, len(ordered))
	for _, id := range ordered {
		out = append(out, g.systems[id])
	}
	return out
}

// acquireResources implements spec.md §4.4.4: lock the union of every
// declared resource exclusively at the world level, then scatter resolved
// values into each context's resources slice.
func (g *Graph) acquireResources() error {
	ids := make([]universe.ResourceID, 0, len(g.resources))
	for id := range g.resources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	worldIDs := make([]world.ResourceID, len(ids))
	for i, id := range ids {
		worldIDs[i] = world.ResourceID(id)
	}

	out := make([]any, len(worldIDs))
	if err := g.world.LockResources(worldIDs, nil, out); err != nil {
		return err
	}

	values := make(map[universe.ResourceID]any, len(ids))
	for i, id := range ids {
		values[id] = out[i]
	}
	g.acquiredIDs = ids
	g.acquiredValues = values

	for _, ctx := range g.systems {
		n := len(ctx.descriptor.ExclusiveResources)
		for i, rid := range ctx.descriptor.ExclusiveResources {
			ctx.resources[i] = values[rid]
		}
		for i, rid := range ctx.descriptor.SharedResources {
			ctx.resources[n+i] = values[rid]
		}
	}
	return nil
}

// releaseResources unlocks every resource acquireResources locked.
func (g *Graph) releaseResources() {
	for _, id := range g.acquiredIDs {
		g.world.UnlockResourceExclusive(world.ResourceID(id))
	}
	g.acquiredIDs = nil
	g.acquiredValues = nil
}
