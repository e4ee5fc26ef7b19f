package arenapool

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Example demonstrates basic pool usage
func Example() {
	pool := NewPool(Config{ElementSize: 64, ElementsPerArena: 4})
	defer pool.Clear()

	e, err := pool.Lease()
	if err != nil {
		fmt.Println("lease failed:", err)
		return
	}

	buf, _ := e.Data()
	copy(buf, "hello")
	fmt.Printf("Leased slot %d of %d bytes\n", e.Index(), e.Size())
	fmt.Printf("Contents: %s\n", buf[:5])

	e.SetTag(7)
	e.Touch()
	fmt.Printf("Tag: %d\n", e.Tag())

	m := pool.Metrics()
	fmt.Printf("Arenas: %d, in use: %d/%d\n", m.Arenas, m.InUse, m.Capacity)

	e.Release()
	fmt.Printf("After release, in use: %d\n", pool.Metrics().InUse)

	// Output:
	// Leased slot 0 of 64 bytes
	// Contents: hello
	// Tag: 7
	// Arenas: 1, in use: 1/4
	// After release, in use: 0
}

// ExampleView demonstrates typed access to pooled elements
func ExampleView() {
	type sample struct {
		Timestamp int64
		Value     float64
	}

	pool := NewPoolFor[sample](Config{ElementsPerArena: 16})
	defer pool.Clear()

	e, _ := pool.Lease()
	defer e.Release()

	s, _ := View[sample](e)
	s.Timestamp = 1700000000
	s.Value = 0.5

	again, _ := View[sample](e)
	fmt.Printf("Element size: %d\n", e.Size())
	fmt.Printf("Sample: %d %.1f\n", again.Timestamp, again.Value)

	// Output:
	// Element size: 16
	// Sample: 1700000000 0.5
}

// ExamplePool_SweepIdleArenas demonstrates growth and idle reclamation
func ExamplePool_SweepIdleArenas() {
	mock := clock.NewMock()
	pool := NewPool(Config{ElementSize: 8, ElementsPerArena: 2}, WithClock(mock))
	defer pool.Clear()

	var held []*Element
	for i := 0; i < 3; i++ {
		e, _ := pool.Lease()
		held = append(held, e)
	}
	fmt.Printf("Arenas after 3 leases: %d\n", pool.ArenaCount())

	held[0].Release()
	held[1].Release()
	mock.Add(10 * time.Second)

	fmt.Printf("Reclaimed: %d\n", pool.SweepIdleArenas(5*time.Second))
	fmt.Printf("Arenas after sweep: %d\n", pool.ArenaCount())
	fmt.Printf("Remaining lease valid: %v\n", held[2].Valid())

	// Output:
	// Arenas after 3 leases: 2
	// Reclaimed: 1
	// Arenas after sweep: 1
	// Remaining lease valid: true
}

// ExampleElement_Retain demonstrates sharing one lease between goroutines
func ExampleElement_Retain() {
	pool := NewPool(Config{ElementSize: 8, ElementsPerArena: 1})
	defer pool.Clear()

	e, _ := pool.Lease()

	var wg sync.WaitGroup
	const numWorkers = 3
	for i := 0; i < numWorkers; i++ {
		_ = e.Retain()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer e.Release()
			_, _ = e.Data()
		}()
	}
	wg.Wait()

	fmt.Printf("In use while owner holds it: %d\n", pool.Metrics().InUse)
	e.Release()
	fmt.Printf("In use after last release: %d\n", pool.Metrics().InUse)

	// Output:
	// In use while owner holds it: 1
	// In use after last release: 0
}
