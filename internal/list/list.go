package list

import (
	"encoding/binary"
	"errors"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/davrk/membank/internal/pool"
)

// ErrNotFound is returned when a value or node ref is absent from the list.
var ErrNotFound = errors.New("value not found in list")

// List is a singly linked list whose nodes live inside a pool: each node
// costs exactly one pool allocation and is released with one free. A node
// record is the raw bytes of the value followed by the ref of the next
// node, so T must be plain data with no interior pointers.
//
// The list carries its own mutex, acquired before any pool call and never
// the other way around, keeping the lock order list-then-pool.
type List[T comparable] struct {
	mu       sync.Mutex
	pool     *pool.Pool
	head     pool.Ref
	length   int
	elemSize int
	logger   *zap.Logger
}

// New creates an empty list drawing node storage from p.
func New[T comparable](p *pool.Pool, logger *zap.Logger) *List[T] {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}
	return &List[T]{
		pool:     p,
		head:     pool.NilRef,
		elemSize: int(unsafe.Sizeof(zero)),
		logger:   logger,
	}
}

const nextSize = 8

func (l *List[T]) nodeSize() int {
	return l.elemSize + nextSize
}

func (l *List[T]) newNode(v T, next pool.Ref) (pool.Ref, error) {
	ref, err := l.pool.Alloc(l.nodeSize())
	if err != nil {
		l.logger.Warn("failed to allocate list node", zap.Error(err))
		return pool.NilRef, err
	}
	if err := l.writeNode(ref, v, next); err != nil {
		_ = l.pool.Free(ref)
		return pool.NilRef, err
	}
	return ref, nil
}

func (l *List[T]) writeNode(ref pool.Ref, v T, next pool.Ref) error {
	b, err := l.pool.Bytes(ref)
	if err != nil {
		return err
	}
	copy(b[:l.elemSize], unsafe.Slice((*byte)(unsafe.Pointer(&v)), l.elemSize))
	binary.LittleEndian.PutUint64(b[l.elemSize:], uint64(int64(next)))
	return nil
}

func (l *List[T]) readNode(ref pool.Ref) (T, pool.Ref, error) {
	var v T
	b, err := l.pool.Bytes(ref)
	if err != nil {
		return v, pool.NilRef, err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&v)), l.elemSize), b[:l.elemSize])
	next := pool.Ref(int64(binary.LittleEndian.Uint64(b[l.elemSize:])))
	return v, next, nil
}

func (l *List[T]) setNext(ref, next pool.Ref) error {
	b, err := l.pool.Bytes(ref)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b[l.elemSize:], uint64(int64(next)))
	return nil
}

// Push appends v at the end of the list.
func (l *List[T]) Push(v T) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	node, err := l.newNode(v, pool.NilRef)
	if err != nil {
		return err
	}
	if l.head == pool.NilRef {
		l.head = node
		l.length++
		return nil
	}

	tail := l.head
	for {
		_, next, err := l.readNode(tail)
		if err != nil {
			return err
		}
		if next == pool.NilRef {
			break
		}
		tail = next
	}
	if err := l.setNext(tail, node); err != nil {
		return err
	}
	l.length++
	return nil
}

// InsertAfter inserts v immediately after the node at ref.
func (l *List[T]) InsertAfter(ref pool.Ref, v T) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ref == pool.NilRef {
		return pool.ErrNilRef
	}
	_, next, err := l.readNode(ref)
	if err != nil {
		return err
	}
	node, err := l.newNode(v, next)
	if err != nil {
		return err
	}
	if err := l.setNext(ref, node); err != nil {
		return err
	}
	l.length++
	return nil
}

// InsertBefore inserts v immediately before the node at ref.
func (l *List[T]) InsertBefore(ref pool.Ref, v T) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ref == pool.NilRef {
		return pool.ErrNilRef
	}
	if l.head == ref {
		node, err := l.newNode(v, l.head)
		if err != nil {
			return err
		}
		l.head = node
		l.length++
		return nil
	}

	prev := l.head
	for prev != pool.NilRef {
		_, next, err := l.readNode(prev)
		if err != nil {
			return err
		}
		if next == ref {
			node, err := l.newNode(v, ref)
			if err != nil {
				return err
			}
			if err := l.setNext(prev, node); err != nil {
				return err
			}
			l.length++
			return nil
		}
		prev = next
	}
	l.logger.Warn("insert before a node that is not in the list")
	return ErrNotFound
}

// Remove unlinks and frees the first node holding v.
func (l *List[T]) Remove(v T) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := pool.NilRef
	cur := l.head
	for cur != pool.NilRef {
		val, next, err := l.readNode(cur)
		if err != nil {
			return err
		}
		if val == v {
			if prev == pool.NilRef {
				l.head = next
			} else if err := l.setNext(prev, next); err != nil {
				return err
			}
			if err := l.pool.Free(cur); err != nil {
				return err
			}
			l.length--
			return nil
		}
		prev = cur
		cur = next
	}
	return ErrNotFound
}

// Find returns the ref of the first node holding v.
func (l *List[T]) Find(v T) (pool.Ref, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.head
	for cur != pool.NilRef {
		val, next, err := l.readNode(cur)
		if err != nil {
			return pool.NilRef, err
		}
		if val == v {
			return cur, nil
		}
		cur = next
	}
	return pool.NilRef, ErrNotFound
}

// Len returns the number of nodes in the list.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.length
}

// Items returns all values in list order.
func (l *List[T]) Items() ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.itemsBetweenLocked(pool.NilRef, pool.NilRef)
}

// ItemsBetween returns the values from the node at from through the node
// at to, inclusive. A nil from starts at the head; a nil to runs to the
// end of the list.
func (l *List[T]) ItemsBetween(from, to pool.Ref) ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.itemsBetweenLocked(from, to)
}

func (l *List[T]) itemsBetweenLocked(from, to pool.Ref) ([]T, error) {
	var items []T
	inRange := from == pool.NilRef
	cur := l.head
	for cur != pool.NilRef {
		if cur == from {
			inRange = true
		}
		val, next, err := l.readNode(cur)
		if err != nil {
			return nil, err
		}
		if inRange {
			items = append(items, val)
			if cur == to {
				break
			}
		}
		cur = next
	}
	return items, nil
}

// Cleanup frees every node and leaves the list empty. The pool itself is
// left untouched: it is owned by the caller and may back other consumers.
func (l *List[T]) Cleanup() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.head
	for cur != pool.NilRef {
		_, next, err := l.readNode(cur)
		if err != nil {
			return err
		}
		if err := l.pool.Free(cur); err != nil {
			return err
		}
		cur = next
	}
	l.head = pool.NilRef
	l.length = 0
	return nil
}
