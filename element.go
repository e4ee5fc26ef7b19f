package arenapool

import (
	"runtime"
	"time"

	"github.com/go-kit/log/level"
	"go.uber.org/atomic"
)

// lease is the part of an Element the arena needs to take a slot back.
// It never points at the Element so the handle can become unreachable.
type lease struct {
	arena      *Arena
	index      int
	generation uint64
	returned   atomic.Bool
}

// Element is a leased handle over one slot of an arena.
//
// A handle starts with a single holder. Retain adds a holder and Release drops
// one; the slot goes back to its arena when the last holder releases it. A handle
// that becomes unreachable while still held is returned automatically on a later
// garbage collection, and the leak is logged.
type Element struct {
	*lease

	data    []byte
	refs    atomic.Int32
	cleanup runtime.Cleanup

	tag          atomic.Int64
	lastAccessed atomic.Int64
}

func newElement(a *Arena, index int, generation uint64, data []byte) *Element {
	e := &Element{
		lease: &lease{arena: a, index: index, generation: generation},
		data:  data,
	}
	e.refs.Store(1)
	e.lastAccessed.Store(a.clock.Now().UnixNano())
	e.cleanup = runtime.AddCleanup(e, (*lease).dropped, e.lease)
	return e
}

// dropped runs once the Element owning l has been garbage collected.
func (l *lease) dropped() {
	if !l.returned.CompareAndSwap(false, true) {
		return
	}
	level.Error(l.arena.logger).Log("msg", "lease handle collected without being released", "index", l.index)
	l.arena.release(l)
}

// Data returns the slot bytes. It fails once the lease has been released or
// once the arena the element was leased from has been destroyed.
func (e *Element) Data() ([]byte, error) {
	if e.refs.Load() <= 0 || e.returned.Load() {
		return nil, ErrLeaseReleased
	}
	if e.arena.generation.Load() != e.generation {
		return nil, ErrArenaReclaimed
	}
	return e.data, nil
}

// Valid reports whether Data would succeed.
func (e *Element) Valid() bool {
	_, err := e.Data()
	return err == nil
}

// Index returns the slot index within the owning arena.
func (e *Element) Index() int {
	return e.index
}

// Size returns the slot size in bytes.
func (e *Element) Size() int {
	return len(e.data)
}

// Touch records now as the last access time. The pool itself never reads it.
func (e *Element) Touch() {
	e.lastAccessed.Store(e.arena.clock.Now().UnixNano())
}

// LastAccessed returns the time of the last Touch, or the lease time.
func (e *Element) LastAccessed() time.Time {
	return time.Unix(0, e.lastAccessed.Load())
}

// Tag returns the caller-defined tag.
func (e *Element) Tag() int64 {
	return e.tag.Load()
}

// SetTag stores an opaque caller-defined value on the handle.
func (e *Element) SetTag(v int64) {
	e.tag.Store(v)
}

// Retain adds a holder to the lease.
func (e *Element) Retain() error {
	for {
		refs := e.refs.Load()
		if refs <= 0 {
			return ErrLeaseReleased
		}
		if e.refs.CompareAndSwap(refs, refs+1) {
			return nil
		}
	}
}

// Release drops one holder. The slot is returned when the last holder releases;
// calls beyond that are no-ops.
func (e *Element) Release() {
	for {
		refs := e.refs.Load()
		if refs <= 0 {
			return
		}
		if e.refs.CompareAndSwap(refs, refs-1) {
			if refs == 1 {
				e.giveBack()
			}
			return
		}
	}
}

func (e *Element) giveBack() {
	if !e.returned.CompareAndSwap(false, true) {
		return
	}
	e.cleanup.Stop()
	e.arena.release(e.lease)
}
