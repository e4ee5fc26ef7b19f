package arenapool

import (
	"math"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/benbjohnson/clock"
	"github.com/bits-and-blooms/bitset"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// slotAlign is the alignment of every slot inside an arena.
const slotAlign = unsafe.Sizeof(uintptr(0))

// Arena owns one contiguous buffer split into equally sized slots.
// All methods are safe for concurrent use.
type Arena struct {
	id     uint64
	logger log.Logger
	clock  clock.Clock
	zero   bool

	// generation changes every time the buffer is dropped. Handles compare
	// it against the value recorded at lease time.
	generation atomic.Uint64

	mu            sync.Mutex
	slotSize      int
	stride        int
	capacity      int
	storage       []byte
	free          *bitset.BitSet // set bit = free slot
	leased        int
	becameEmptyAt time.Time
}

// NewArena creates an empty, unallocated arena. Call Allocate before leasing.
func NewArena(opts ...Option) *Arena {
	return newArena(0, applyOptions(opts))
}

func newArena(id uint64, o options) *Arena {
	return &Arena{
		id:     id,
		logger: log.With(o.logger, "arena", id),
		clock:  o.clock,
		zero:   !o.noZeroing,
	}
}

// Allocate reserves storage for capacity slots of slotSize bytes each.
// It is a no-op if the arena is already allocated.
func (a *Arena) Allocate(slotSize, capacity int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.storage != nil {
		return nil
	}
	if slotSize <= 0 {
		level.Warn(a.logger).Log("msg", "refusing to allocate arena", "element_size", slotSize, "err", ErrInvalidElementSize)
		return errors.Wrapf(ErrInvalidElementSize, "slot size %d", slotSize)
	}
	if capacity <= 0 {
		level.Warn(a.logger).Log("msg", "refusing to allocate arena", "elements_per_arena", capacity, "err", ErrInvalidElementsPerArena)
		return errors.Wrapf(ErrInvalidElementsPerArena, "capacity %d", capacity)
	}

	stride := alignUp(slotSize)
	if stride <= 0 || capacity > math.MaxInt/stride {
		level.Warn(a.logger).Log("msg", "arena size overflows", "element_size", slotSize, "elements_per_arena", capacity)
		return errors.Wrapf(ErrAllocationFailed, "%d slots of %d bytes", capacity, slotSize)
	}

	buf, err := allocStorage(stride * capacity)
	if err != nil {
		level.Warn(a.logger).Log("msg", "failed to allocate arena storage", "bytes", stride*capacity, "err", err)
		return err
	}

	a.slotSize = slotSize
	a.stride = stride
	a.capacity = capacity
	a.storage = buf
	a.free = bitset.New(uint(capacity)).FlipRange(0, uint(capacity))
	a.leased = 0
	a.becameEmptyAt = a.clock.Now()
	return nil
}

// allocStorage converts allocation panics raised by the runtime into errors.
// Exhausting the heap outright is fatal in Go and cannot be recovered here.
func allocStorage(n int) (buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			re, ok := r.(runtime.Error)
			if !ok {
				panic(r)
			}
			buf, err = nil, errors.Wrap(ErrAllocationFailed, re.Error())
		}
	}()
	return make([]byte, n), nil
}

// Lease hands out the lowest-index free slot. It returns false when the arena
// is full or not allocated.
func (a *Arena) Lease() (*Element, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.storage == nil {
		return nil, false
	}
	idx, ok := a.free.NextSet(0)
	if !ok {
		return nil, false
	}

	a.free.Clear(idx)
	a.leased++

	data := a.slot(int(idx))
	if a.zero {
		clear(data)
	}
	return newElement(a, int(idx), a.generation.Load(), data), true
}

// slot returns the bytes of slot i, capped so appends cannot spill into the next slot.
func (a *Arena) slot(i int) []byte {
	off := i * a.stride
	return a.storage[off : off+a.slotSize : off+a.slotSize]
}

// release puts the slot held by l back into the free mask. Handles that do not
// belong to the current generation of this arena are rejected without touching state.
func (a *Arena) release(l *lease) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if l.arena != a {
		level.Error(a.logger).Log("msg", "lease returned to an arena it was not leased from", "index", l.index)
		return false
	}
	if a.storage == nil || l.generation != a.generation.Load() {
		level.Debug(a.logger).Log("msg", "ignoring release of a lease from a reclaimed arena", "index", l.index)
		return false
	}
	if l.index < 0 || l.index >= a.capacity {
		level.Error(a.logger).Log("msg", "lease index out of range", "index", l.index, "capacity", a.capacity)
		return false
	}
	if a.free.Test(uint(l.index)) {
		level.Error(a.logger).Log("msg", "slot released twice", "index", l.index)
		return false
	}

	a.free.Set(uint(l.index))
	a.leased--
	if a.leased == 0 {
		a.becameEmptyAt = a.clock.Now()
	}
	return true
}

// destroy drops the backing buffer and invalidates every outstanding handle.
// It returns the number of bytes released.
func (a *Arena) destroy() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyLocked()
}

func (a *Arena) destroyLocked() int {
	n := len(a.storage)
	a.storage = nil
	a.free = nil
	a.leased = 0
	a.generation.Inc()
	return n
}

// destroyIfIdle destroys the arena if no slot is leased and it has been empty
// for at least maxIdle, reporting whether it did and how many bytes it released.
func (a *Arena) destroyIfIdle(now time.Time, maxIdle time.Duration) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.storage == nil || a.leased != 0 || now.Sub(a.becameEmptyAt) < maxIdle {
		return 0, false
	}
	return a.destroyLocked(), true
}

// ID returns the identifier the owning pool assigned to the arena.
func (a *Arena) ID() uint64 {
	return a.id
}

// UsageCount returns the number of slots currently leased.
func (a *Arena) UsageCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.leased
}

// IdleSince returns when the arena last became fully free.
// It is only meaningful while UsageCount is zero.
func (a *Arena) IdleSince() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.becameEmptyAt
}

// Capacity returns the number of slots, or zero if the arena is not allocated.
func (a *Arena) Capacity() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.storage == nil {
		return 0
	}
	return a.capacity
}

// IsAllocated reports whether the arena currently owns storage.
func (a *Arena) IsAllocated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.storage != nil
}

// freeCount returns the number of free slots according to the mask.
func (a *Arena) freeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.free == nil {
		return 0
	}
	return int(a.free.Count())
}

// alignUp rounds n up to slot alignment.
func alignUp(n int) int {
	mask := int(slotAlign) - 1
	return (n + mask) &^ mask
}
