package allocator

// SingleGeneration is reset at the end of every completed generation
// (spec.md §3: "SingleGenerationAllocator reset every completion").
type SingleGeneration struct {
	arena *Arena
}

// NewSingleGeneration returns a single-generation allocator.
func NewSingleGeneration() *SingleGeneration {
	return &SingleGeneration{arena: NewArena(256)}
}

// Alloc carves size bytes valid until the next ResetGeneration.
func (s *SingleGeneration) Alloc(size int) []byte {
	return s.arena.Alloc(size)
}

// ResetGeneration discards every allocation made during the generation that
// just completed.
func (s *SingleGeneration) ResetGeneration() {
	s.arena.Reset()
}
