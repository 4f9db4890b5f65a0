package pool

import (
	"sync"

	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
)

// ArrowAllocator adapts a Pool to Arrow's memory.Allocator interface so
// record batch construction can draw from pool-managed memory. Arrow's
// contract has no error return: exhausting the pool panics, matching the
// behavior of Arrow's own mallocator on failed allocations.
type ArrowAllocator struct {
	mu   sync.Mutex
	pool *Pool
	refs map[*byte]Ref
}

// NewArrowAllocator wraps p in an Arrow-compatible allocator.
func NewArrowAllocator(p *Pool) *ArrowAllocator {
	return &ArrowAllocator{
		pool: p,
		refs: make(map[*byte]Ref),
	}
}

// Allocate returns a slice of exactly size bytes backed by the pool.
func (a *ArrowAllocator) Allocate(size int) []byte {
	if size == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocate(size)
}

func (a *ArrowAllocator) allocate(size int) []byte {
	ref, err := a.pool.Alloc(size)
	if err != nil {
		panic(err)
	}
	buf, err := a.pool.Bytes(ref)
	if err != nil {
		panic(err)
	}
	a.refs[&buf[0]] = ref
	return buf
}

// Reallocate resizes b, copying its contents when the block moves.
func (a *ArrowAllocator) Reallocate(size int, b []byte) []byte {
	if len(b) == 0 {
		return a.Allocate(size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ref, ok := a.refs[&b[0]]
	if !ok {
		// Foreign buffer: copy into pool-backed memory.
		if size == 0 {
			return nil
		}
		nb := a.allocate(size)
		copy(nb, b)
		return nb
	}

	newRef, err := a.pool.Resize(ref, size)
	if err != nil {
		panic(err)
	}
	if size == 0 {
		delete(a.refs, &b[0])
		return nil
	}
	if newRef == ref {
		// Grown or shrunk within the recorded extent.
		nb, err := a.pool.Bytes(ref)
		if err != nil {
			panic(err)
		}
		return nb[:size]
	}

	delete(a.refs, &b[0])
	nb, err := a.pool.Bytes(newRef)
	if err != nil {
		panic(err)
	}
	a.refs[&nb[0]] = newRef
	return nb[:size]
}

// Free releases b back to the pool. Buffers the allocator does not know
// about are ignored, as are empty slices.
func (a *ArrowAllocator) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	ref, ok := a.refs[&b[0]]
	if !ok {
		return
	}
	delete(a.refs, &b[0])
	// The ref was handed out by this allocator; Free only fails if the
	// caller double-freed, which the refs map already prevents.
	_ = a.pool.Free(ref)
}

var _ arrowmem.Allocator = (*ArrowAllocator)(nil)
