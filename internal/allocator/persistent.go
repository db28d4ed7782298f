package allocator

// Persistent backs a SystemContext's system-persistent allocations (spec.md
// §4.3: "system-persistent (context's tracing allocator)"). Unlike the
// generation-scoped strategies, it is never reset automatically — it owns
// its backing memory for the lifetime of the context and is only reclaimed
// when the context itself is garbage collected after deinit. The "tracing"
// in its name is diagnostic only (spec.md §9: "the tracing allocator wrapper
// is purely diagnostic and optional"): it counts allocations for
// observability, not for correctness.
type Persistent struct {
	arena  *Arena
	allocs int
}

// NewPersistent returns a persistent allocator with a small initial capacity.
func NewPersistent() *Persistent {
	return &Persistent{arena: NewArena(64)}
}

// Alloc carves size bytes that remain valid for the owning context's entire
// lifetime.
func (p *Persistent) Alloc(size int) []byte {
	p.allocs++
	return p.arena.Alloc(size)
}

// AllocCount reports how many allocations have been made through this
// allocator, for diagnostics.
func (p *Persistent) AllocCount() int { return p.allocs }
