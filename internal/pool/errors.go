package pool

import "errors"

// Validation and state errors. Everything here is recoverable: a failed
// call never mutates the pool. The only unrecoverable condition is the
// backing buffer reservation itself failing, which surfaces as a runtime
// panic from make.
var (
	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrUninitialized      = errors.New("pool is not initialized")
	ErrBadCapacity        = errors.New("pool capacity must be positive")
	ErrInvalidSize        = errors.New("allocation size must be positive")
	ErrOutOfSpace         = errors.New("no free extent large enough")
	ErrNilRef             = errors.New("nil ref")
	ErrOutOfBounds        = errors.New("ref outside pool bounds")
	ErrNotAllocated       = errors.New("ref is not a live allocation")
)
