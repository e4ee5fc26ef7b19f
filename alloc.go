package arenapool

import (
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
)

// SizeOf returns the element size needed to store one T.
func SizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// NewPoolFor creates a pool whose element size fits one T. Any ElementSize
// already set in cfg is overwritten.
// T must not contain Go pointers: the garbage collector does not scan arena memory.
func NewPoolFor[T any](cfg Config, opts ...Option) *Pool {
	cfg.ElementSize = SizeOf[T]()
	return NewPool(cfg, opts...)
}

// View returns a *T over the element's slot.
// The pointer is valid only while the lease is held and its arena is alive.
func View[T any](e *Element) (*T, error) {
	b, err := e.Data()
	if err != nil {
		return nil, err
	}
	size := SizeOf[T]()
	if size > len(b) {
		return nil, errors.Wrapf(ErrElementTooSmall, "need %d bytes, slot has %d", size, len(b))
	}
	if size == 0 {
		return new(T), nil
	}
	return (*T)(unsafe.Pointer(&b[0])), nil
}

// ViewSlice returns the element's slot as a slice of as many T as fit in it.
func ViewSlice[T any](e *Element) ([]T, error) {
	b, err := e.Data()
	if err != nil {
		return nil, err
	}
	size := SizeOf[T]()
	if size == 0 || size > len(b) {
		return nil, errors.Wrapf(ErrElementTooSmall, "need %d bytes, slot has %d", size, len(b))
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/size), nil
}

// KeepAlive returns t and keeps the element reachable up to this call so
// its slot is not reclaimed by the automatic release while t is in use.
func KeepAlive[T any](e *Element, t *T) *T {
	runtime.KeepAlive(e)
	return t
}
