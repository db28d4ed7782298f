package allocator

// Transient backs the per-context arena reset at the end of every run()
// (spec.md §4.3: "resets the per-context transient arena").
type Transient struct {
	arena *Arena
}

// NewTransient returns a transient allocator with a small initial capacity.
func NewTransient() *Transient {
	return &Transient{arena: NewArena(64)}
}

// Alloc carves size bytes from the current run's arena.
func (t *Transient) Alloc(size int) []byte {
	return t.arena.Alloc(size)
}

// ResetRun discards every allocation made during the run that just finished.
func (t *Transient) ResetRun() {
	t.arena.Reset()
}
