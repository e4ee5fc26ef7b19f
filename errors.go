package arenapool

import "github.com/pkg/errors"

var (
	// ErrInvalidElementSize is returned when the configured element size is not positive.
	ErrInvalidElementSize = errors.New("arenapool: element size must be positive")

	// ErrInvalidElementsPerArena is returned when the configured arena capacity is not positive.
	ErrInvalidElementsPerArena = errors.New("arenapool: elements per arena must be positive")

	// ErrAllocationFailed is returned when the backing buffer of an arena could not be allocated.
	ErrAllocationFailed = errors.New("arenapool: arena allocation failed")

	// ErrPoolExhausted is returned when a new arena is needed but the pool is at its arena limit.
	ErrPoolExhausted = errors.New("arenapool: pool exhausted")

	// ErrLeaseReleased is returned when a handle is used after its last holder released it.
	ErrLeaseReleased = errors.New("arenapool: lease already released")

	// ErrArenaReclaimed is returned when a handle outlived the arena it was leased from.
	ErrArenaReclaimed = errors.New("arenapool: arena reclaimed")

	// ErrElementTooSmall is returned by typed views when a slot cannot hold the requested type.
	ErrElementTooSmall = errors.New("arenapool: element too small for type")
)
