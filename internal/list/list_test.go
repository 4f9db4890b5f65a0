package list

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davrk/membank/internal/pool"
)

func newTestList(t *testing.T) (*List[uint32], *pool.Pool) {
	t.Helper()
	p, err := pool.New(64*1024, nil)
	require.NoError(t, err)
	return New[uint32](p, nil), p
}

func TestList_PushAndItems(t *testing.T) {
	l, _ := newTestList(t)

	for _, v := range []uint32{10, 20, 30} {
		require.NoError(t, l.Push(v))
	}

	items, err := l.Items()
	require.NoError(t, err)
	assert.Equal(t, []uint32{10, 20, 30}, items)
	assert.Equal(t, 3, l.Len())
}

func TestList_OnePoolAllocationPerNode(t *testing.T) {
	l, p := newTestList(t)

	base := p.Stats().LiveAllocs
	require.NoError(t, l.Push(1))
	require.NoError(t, l.Push(2))
	assert.Equal(t, base+2, p.Stats().LiveAllocs)

	require.NoError(t, l.Remove(1))
	assert.Equal(t, base+1, p.Stats().LiveAllocs)
}

func TestList_InsertAfterBefore(t *testing.T) {
	l, _ := newTestList(t)

	require.NoError(t, l.Push(1))
	require.NoError(t, l.Push(4))

	at, err := l.Find(1)
	require.NoError(t, err)
	require.NoError(t, l.InsertAfter(at, 2))

	at, err = l.Find(4)
	require.NoError(t, err)
	require.NoError(t, l.InsertBefore(at, 3))

	// Inserting before the head updates the head.
	at, err = l.Find(1)
	require.NoError(t, err)
	require.NoError(t, l.InsertBefore(at, 0))

	items, err := l.Items()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, items)
}

func TestList_InsertValidation(t *testing.T) {
	l, p := newTestList(t)
	require.NoError(t, l.Push(1))

	assert.ErrorIs(t, l.InsertAfter(pool.NilRef, 9), pool.ErrNilRef)
	assert.ErrorIs(t, l.InsertBefore(pool.NilRef, 9), pool.ErrNilRef)

	// A ref that is not a node of this list.
	stray, err := p.Alloc(12)
	require.NoError(t, err)
	assert.ErrorIs(t, l.InsertBefore(stray, 9), ErrNotFound)
	assert.Equal(t, 1, l.Len())
}

func TestList_Remove(t *testing.T) {
	l, _ := newTestList(t)

	for _, v := range []uint32{5, 6, 7} {
		require.NoError(t, l.Push(v))
	}

	// Head, middle, missing.
	require.NoError(t, l.Remove(5))
	require.NoError(t, l.Remove(6))
	assert.ErrorIs(t, l.Remove(42), ErrNotFound)

	items, err := l.Items()
	require.NoError(t, err)
	assert.Equal(t, []uint32{7}, items)
}

func TestList_ItemsBetween(t *testing.T) {
	l, _ := newTestList(t)

	for v := uint32(1); v <= 5; v++ {
		require.NoError(t, l.Push(v))
	}

	from, err := l.Find(2)
	require.NoError(t, err)
	to, err := l.Find(4)
	require.NoError(t, err)

	items, err := l.ItemsBetween(from, to)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 3, 4}, items)

	// Nil from starts at the head.
	items, err = l.ItemsBetween(pool.NilRef, to)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3, 4}, items)
}

func TestList_CleanupReleasesPool(t *testing.T) {
	l, p := newTestList(t)

	for v := uint32(0); v < 50; v++ {
		require.NoError(t, l.Push(v))
	}
	require.NotZero(t, p.Stats().LiveBytes)

	require.NoError(t, l.Cleanup())
	assert.Equal(t, 0, l.Len())

	st := p.Stats()
	assert.Equal(t, 0, st.LiveBytes)
	assert.Equal(t, 1, st.FreeExtents)
}

func TestList_PoolExhaustion(t *testing.T) {
	p, err := pool.New(30, nil)
	require.NoError(t, err)
	l := New[uint32](p, nil)

	// Nodes are 12 bytes: two fit, a third does not.
	require.NoError(t, l.Push(1))
	require.NoError(t, l.Push(2))
	assert.ErrorIs(t, l.Push(3), pool.ErrOutOfSpace)
	assert.Equal(t, 2, l.Len())
}

func TestList_ConcurrentPush(t *testing.T) {
	l, _ := newTestList(t)

	const (
		goroutines = 8
		perWorker  = 50
	)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(base uint32) {
			defer wg.Done()
			for i := uint32(0); i < perWorker; i++ {
				if err := l.Push(base + i); err != nil {
					t.Errorf("push: %v", err)
				}
			}
		}(uint32(g * 1000))
	}
	wg.Wait()

	assert.Equal(t, goroutines*perWorker, l.Len())
}
