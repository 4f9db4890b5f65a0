package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrowAllocator_AllocateFree(t *testing.T) {
	p := newTestPool(t, 1024)
	alloc := NewArrowAllocator(p)

	b := alloc.Allocate(64)
	require.Len(t, b, 64)
	b[0] = 0x11
	b[63] = 0x22

	assert.Equal(t, 64, p.Stats().LiveBytes)

	alloc.Free(b)
	assert.Equal(t, 0, p.Stats().LiveBytes)
}

func TestArrowAllocator_ZeroAndForeign(t *testing.T) {
	p := newTestPool(t, 1024)
	alloc := NewArrowAllocator(p)

	assert.Nil(t, alloc.Allocate(0))
	alloc.Free(nil)

	// A buffer the allocator never handed out is ignored by Free and
	// copied by Reallocate.
	foreign := []byte{1, 2, 3, 4}
	alloc.Free(foreign)

	nb := alloc.Reallocate(8, foreign)
	require.Len(t, nb, 8)
	assert.Equal(t, []byte{1, 2, 3, 4}, nb[:4])
	assert.Equal(t, 8, p.Stats().LiveBytes)
}

func TestArrowAllocator_ReallocateMoves(t *testing.T) {
	p := newTestPool(t, 1024)
	alloc := NewArrowAllocator(p)

	b := alloc.Allocate(16)
	copy(b, "0123456789abcdef")

	// Pin the adjacent region so growth has to move the block.
	pin := alloc.Allocate(16)

	nb := alloc.Reallocate(64, b)
	require.Len(t, nb, 64)
	assert.Equal(t, []byte("0123456789abcdef"), nb[:16])

	// Shrink stays in place.
	sb := alloc.Reallocate(8, nb)
	require.Len(t, sb, 8)
	assert.Equal(t, []byte("01234567"), sb)

	alloc.Free(sb)
	alloc.Free(pin)
	assert.Equal(t, 0, p.Stats().LiveBytes)
}

func TestArrowAllocator_PanicsWhenExhausted(t *testing.T) {
	p := newTestPool(t, 32)
	alloc := NewArrowAllocator(p)

	assert.Panics(t, func() {
		alloc.Allocate(64)
	})
}
