package allocator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArenaAllocGrowsAndResetRetainsCapacity(t *testing.T) {
	a := NewArena(4)
	s1 := a.Alloc(4)
	require.Len(t, s1, 4)
	require.Equal(t, 4, a.Len())

	s2 := a.Alloc(8) // forces growth past initial capacity
	require.Len(t, s2, 8)
	require.Equal(t, 12, a.Len())
	grownCap := a.Cap()

	a.Reset()
	require.Equal(t, 0, a.Len())
	require.Equal(t, grownCap, a.Cap())
}

func TestArenaAllocIsZeroed(t *testing.T) {
	a := NewArena(8)
	s := a.Alloc(4)
	for _, b := range s {
		require.Equal(t, byte(0), b)
	}
}

func TestTransientResetRun(t *testing.T) {
	tr := NewTransient()
	tr.Alloc(16)
	tr.ResetRun()
	tr.Alloc(16) // should reuse the same backing capacity without panicking
}

func TestSingleGenerationResetGeneration(t *testing.T) {
	sg := NewSingleGeneration()
	sg.Alloc(32)
	sg.ResetGeneration()
	sg.Alloc(32)
}

func TestMultiGenerationRotatesAtStride(t *testing.T) {
	m := NewMultiGeneration()
	m.Alloc(16) // generation 0, slot 0

	for g := uint64(1); g < multiGenerationArenas; g++ {
		m.AdvanceGeneration(g)
		m.Alloc(16)
	}

	// slot 0 has not been touched again yet.
	require.Equal(t, 16, m.arenas[0].Len())

	// generation 4 reclaims slot 0 (4 % 4 == 0).
	m.AdvanceGeneration(multiGenerationArenas)
	require.Equal(t, 0, m.arenas[0].Len())
}
