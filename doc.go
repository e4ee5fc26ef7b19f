// Package arenapool implements an arena-based object pool for fixed-size elements.
//
// # Overview
//
// A Pool hands out elements of one fixed size. Instead of allocating each
// element on its own, it allocates arenas: contiguous buffers holding a
// configured number of slots. Callers lease a slot, use its bytes and release
// it. Arenas that stay completely free for long enough are destroyed.
//
// # Basic Usage
//
//	pool := arenapool.NewPool(arenapool.Config{
//		ElementSize:      256,
//		ElementsPerArena: 64,
//	})
//	defer pool.Clear()
//
//	e, err := pool.Lease()
//	if err != nil {
//		return err
//	}
//	defer e.Release()
//
//	buf, err := e.Data()
//
// Typed access goes through View and ViewSlice:
//
//	type frame struct{ Seq, Size uint32 }
//
//	frames := arenapool.NewPoolFor[frame](arenapool.Config{ElementsPerArena: 128})
//	e, _ := frames.Lease()
//	f, _ := arenapool.View[frame](e)
//	f.Seq = 1
//
// # Leases
//
// An Element is a reference-counted handle. Retain adds a holder, Release
// drops one and the slot goes back to its arena after the last Release.
// Releasing more often than retaining is harmless. A handle that is dropped
// without being released is returned automatically after it is garbage
// collected, and the leak is logged.
//
// Slots are zeroed when leased unless Config.DisableZeroing or WithoutZeroing
// is used.
//
// # Reclamation
//
// SweepIdleArenas destroys every arena that has had no leased slot for at
// least the given duration. Hosts either call it on their own schedule or run
// a Reclaimer, a dskit timer service that sweeps on a fixed interval.
//
// Clear destroys all arenas at once. Handles leased before a Clear or a sweep
// stay safe to use: Data reports ErrArenaReclaimed and Release does nothing.
//
// # Thread Safety
//
// Pool, Arena and Element are safe for concurrent use. The pool lock guards
// the arena list and each arena has its own lock for its free mask, so
// releasing an element never touches the pool lock.
//
// # Metrics and Monitoring
//
//	m := pool.Metrics()
//	fmt.Printf("Utilization: %.2f%%\n", m.Utilization*100)
//	fmt.Printf("Arenas: %d, bytes: %d\n", m.Arenas, m.BytesAllocated)
//
// WithRegisterer additionally exports Prometheus metrics.
package arenapool
