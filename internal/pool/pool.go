package pool

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/davrk/membank/internal/metrics"
)

// Ref is a byte offset into the pool identifying the start of an
// allocation. Refs are stable for the lifetime of the allocation.
type Ref int64

// NilRef is the null address sentinel.
const NilRef Ref = -1

// extent is a {start, size} byte range inside the pool. The same shape
// backs both the free registry and the allocation registry.
type extent struct {
	start int
	size  int
}

// Pool is a fixed-capacity allocator over a single contiguous byte
// buffer. Placement is strictly first-fit over an address-ordered free
// registry; freed extents are merged with address-adjacent neighbors.
//
// All operations serialize on one mutex. Resize holds it for its whole
// alloc-copy-free sequence, so a resize is atomic with respect to other
// callers; the public entry points lock once and delegate to unlocked
// internals rather than relying on reentrancy.
type Pool struct {
	mu sync.Mutex

	buf  []byte
	free []extent    // ascending by start, entries never adjacent
	live map[Ref]int // allocation start -> size

	liveBytes int

	logger *zap.Logger
}

// New creates a pool and reserves its backing buffer. The logger is the
// diagnostic side channel for rejected operations; nil means no logging.
func New(capacity int, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{logger: logger}
	if err := p.Init(capacity); err != nil {
		return nil, err
	}
	return p, nil
}

// Init reserves the backing buffer and seeds the free registry with one
// extent spanning the whole pool. Calling Init on an initialized pool is
// a no-op reported as ErrAlreadyInitialized. A pool may be re-initialized
// after Shutdown.
func (p *Pool) Init(capacity int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buf != nil {
		p.log().Warn("pool already initialized", zap.Int("capacity", len(p.buf)))
		return ErrAlreadyInitialized
	}
	if capacity <= 0 {
		return ErrBadCapacity
	}

	// If this reservation fails the runtime panics; there is nothing the
	// allocator can do without a backing buffer.
	p.buf = make([]byte, capacity)
	p.free = []extent{{start: 0, size: capacity}}
	p.live = make(map[Ref]int)
	p.liveBytes = 0
	p.publishLocked()
	return nil
}

// Shutdown releases the backing buffer and unconditionally discards both
// registries, regardless of outstanding allocations. Refs held by callers
// become dangling. Idempotent; Init may be called again afterwards.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = nil
	p.free = nil
	p.live = nil
	p.liveBytes = 0
	p.publishLocked()
}

// Alloc reserves size bytes and returns the ref of the new extent.
// Zero and negative sizes are rejected with ErrInvalidSize: the
// allocation registry is keyed by start offset and cannot represent two
// live zero-byte extents at the same address.
func (p *Pool) Alloc(size int) (Ref, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocLocked(size)
}

func (p *Pool) allocLocked(size int) (Ref, error) {
	if p.buf == nil {
		metrics.PoolFaultsTotal.WithLabelValues("uninitialized").Inc()
		p.log().Warn("alloc on uninitialized pool", zap.Int("size", size))
		return NilRef, ErrUninitialized
	}
	if size <= 0 {
		metrics.PoolFaultsTotal.WithLabelValues("invalid_size").Inc()
		return NilRef, ErrInvalidSize
	}

	// First-fit: earliest free extent that is large enough wins. An exact
	// fit removes the entry; a larger one is shrunk in place, leaving the
	// remainder at the higher address.
	for i := range p.free {
		if p.free[i].size < size {
			continue
		}
		ref := Ref(p.free[i].start)
		if p.free[i].size == size {
			p.free = append(p.free[:i], p.free[i+1:]...)
		} else {
			p.free[i].start += size
			p.free[i].size -= size
		}
		p.live[ref] = size
		p.liveBytes += size
		metrics.PoolAllocsTotal.Inc()
		p.publishLocked()
		return ref, nil
	}

	p.log().Warn("no free extent large enough", zap.Int("size", size))
	metrics.PoolOutOfSpaceTotal.Inc()
	return NilRef, ErrOutOfSpace
}

// Free returns a live extent to the free registry. Nil refs, refs outside
// the pool and refs that are not live allocations are rejected without
// touching either registry.
func (p *Pool) Free(ref Ref) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freeLocked(ref)
}

func (p *Pool) freeLocked(ref Ref) error {
	if p.buf == nil {
		metrics.PoolFaultsTotal.WithLabelValues("uninitialized").Inc()
		p.log().Warn("free on uninitialized pool", zap.Int64("ref", int64(ref)))
		return ErrUninitialized
	}
	if ref == NilRef {
		metrics.PoolFaultsTotal.WithLabelValues("nil_ref").Inc()
		p.log().Warn("free of nil ref")
		return ErrNilRef
	}
	if ref < 0 || int(ref) >= len(p.buf) {
		metrics.PoolFaultsTotal.WithLabelValues("out_of_bounds").Inc()
		p.log().Warn("free of ref outside pool", zap.Int64("ref", int64(ref)))
		return ErrOutOfBounds
	}
	size, ok := p.live[ref]
	if !ok {
		metrics.PoolFaultsTotal.WithLabelValues("not_allocated").Inc()
		p.log().Warn("free of ref that is not allocated", zap.Int64("ref", int64(ref)))
		return ErrNotAllocated
	}

	delete(p.live, ref)
	p.liveBytes -= size
	p.insertFreeLocked(extent{start: int(ref), size: size})
	metrics.PoolFreesTotal.Inc()
	p.publishLocked()
	return nil
}

// insertFreeLocked places e at its address-ordered slot in the free
// registry and merges it with any adjacent neighbor, so that no two
// entries remain contiguous.
func (p *Pool) insertFreeLocked(e extent) {
	i := sort.Search(len(p.free), func(j int) bool {
		return p.free[j].start > e.start
	})
	p.free = append(p.free, extent{})
	copy(p.free[i+1:], p.free[i:])
	p.free[i] = e

	// Merge successor first so index i stays valid for the predecessor.
	if i+1 < len(p.free) && p.free[i].start+p.free[i].size == p.free[i+1].start {
		p.free[i].size += p.free[i+1].size
		p.free = append(p.free[:i+1], p.free[i+2:]...)
	}
	if i > 0 && p.free[i-1].start+p.free[i-1].size == p.free[i].start {
		p.free[i-1].size += p.free[i].size
		p.free = append(p.free[:i], p.free[i+1:]...)
	}
}

// Resize changes the size of a live allocation, mirroring realloc:
// a nil ref behaves as Alloc(size), size zero behaves as Free(ref) and
// returns NilRef. If the recorded size already covers the request the
// same ref is returned and the registries are untouched; the excess is
// not reclaimed. Growth allocates a new extent, copies the old contents
// and frees the old extent; if the allocation fails the original block
// is left fully intact. The lock is held across the whole sequence.
func (p *Pool) Resize(ref Ref, size int) (Ref, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ref == NilRef {
		return p.allocLocked(size)
	}
	if size == 0 {
		if err := p.freeLocked(ref); err != nil {
			return NilRef, err
		}
		return NilRef, nil
	}
	if p.buf == nil {
		metrics.PoolFaultsTotal.WithLabelValues("uninitialized").Inc()
		p.log().Warn("resize on uninitialized pool", zap.Int64("ref", int64(ref)))
		return NilRef, ErrUninitialized
	}
	old, ok := p.live[ref]
	if !ok {
		metrics.PoolFaultsTotal.WithLabelValues("not_allocated").Inc()
		p.log().Warn("resize of ref that is not allocated", zap.Int64("ref", int64(ref)))
		return NilRef, ErrNotAllocated
	}
	if old >= size {
		metrics.PoolResizesTotal.WithLabelValues("in_place").Inc()
		return ref, nil
	}

	newRef, err := p.allocLocked(size)
	if err != nil {
		return NilRef, err
	}
	copy(p.buf[newRef:int(newRef)+old], p.buf[ref:int(ref)+old])
	if err := p.freeLocked(ref); err != nil {
		// ref was just verified live; unreachable.
		return NilRef, err
	}
	metrics.PoolResizesTotal.WithLabelValues("moved").Inc()
	return newRef, nil
}

// Bytes returns the live extent for ref as a slice aliasing pool memory.
// The slice is valid only until the extent is freed, resized away or the
// pool is shut down.
func (p *Pool) Bytes(ref Ref) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buf == nil {
		return nil, ErrUninitialized
	}
	if ref == NilRef {
		return nil, ErrNilRef
	}
	if ref < 0 || int(ref) >= len(p.buf) {
		return nil, ErrOutOfBounds
	}
	size, ok := p.live[ref]
	if !ok {
		return nil, ErrNotAllocated
	}
	return p.buf[ref : int(ref)+size], nil
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Capacity    int
	LiveBytes   int
	LiveAllocs  int
	FreeBytes   int
	FreeExtents int
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Capacity:    len(p.buf),
		LiveBytes:   p.liveBytes,
		LiveAllocs:  len(p.live),
		FreeBytes:   len(p.buf) - p.liveBytes,
		FreeExtents: len(p.free),
	}
}

// Capacity returns the pool's total byte capacity, or 0 when the pool is
// not initialized.
func (p *Pool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

func (p *Pool) publishLocked() {
	metrics.PoolLiveBytes.Set(float64(p.liveBytes))
	metrics.PoolFreeBytes.Set(float64(len(p.buf) - p.liveBytes))
	metrics.PoolFreeExtents.Set(float64(len(p.free)))
	metrics.PoolLiveAllocations.Set(float64(len(p.live)))
}

func (p *Pool) log() *zap.Logger {
	if p.logger == nil {
		return zap.NewNop()
	}
	return p.logger
}
