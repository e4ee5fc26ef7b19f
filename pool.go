package arenapool

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Pool leases fixed-size elements out of a growing set of arenas.
//
// Leasing scans arenas in creation order and takes the first free slot. A new
// arena is allocated only when every existing arena is full. Arenas that stay
// empty can be destroyed with SweepIdleArenas, typically from a Reclaimer.
type Pool struct {
	cfg     Config
	opts    options
	logger  log.Logger
	clock   clock.Clock
	metrics *poolMetrics

	mu     sync.Mutex
	arenas []*Arena
	nextID uint64
}

// NewPool creates an empty pool. No memory is allocated until the first Lease.
// An invalid configuration is reported by Lease, not here; use Config.Validate
// to fail early.
func NewPool(cfg Config, opts ...Option) *Pool {
	o := applyOptions(opts)
	if cfg.DisableZeroing {
		o.noZeroing = true
	}
	p := &Pool{
		cfg:    cfg,
		opts:   o,
		logger: o.logger,
		clock:  o.clock,
	}
	p.metrics = newPoolMetrics(o.registerer, p)
	return p
}

// Lease returns a handle to a free element, growing the pool by one arena if
// all existing arenas are full.
func (p *Pool) Lease() (*Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, a := range p.arenas {
		if e, ok := a.Lease(); ok {
			p.metrics.leases.Inc()
			return e, nil
		}
	}

	a, err := p.growLocked()
	if err != nil {
		return nil, err
	}
	e, ok := a.Lease()
	if !ok {
		// A freshly allocated arena always has a free slot.
		return nil, errors.New("arenapool: new arena has no free slot")
	}
	p.metrics.leases.Inc()
	return e, nil
}

// growLocked allocates a new arena and appends it. p.mu must be held.
func (p *Pool) growLocked() (*Arena, error) {
	if err := p.cfg.validateLayout(); err != nil {
		level.Warn(p.logger).Log("msg", "cannot grow pool", "element_size", p.cfg.ElementSize, "elements_per_arena", p.cfg.ElementsPerArena, "err", err)
		p.metrics.failures.WithLabelValues(reasonInvalidConfig).Inc()
		return nil, err
	}
	if p.cfg.MaxArenas > 0 && len(p.arenas) >= p.cfg.MaxArenas {
		level.Warn(p.logger).Log("msg", "pool reached arena limit", "max_arenas", p.cfg.MaxArenas)
		p.metrics.failures.WithLabelValues(reasonExhausted).Inc()
		return nil, errors.Wrapf(ErrPoolExhausted, "%d arenas in use", len(p.arenas))
	}

	p.nextID++
	a := newArena(p.nextID, p.opts)
	if err := a.Allocate(p.cfg.ElementSize, p.cfg.ElementsPerArena); err != nil {
		p.metrics.failures.WithLabelValues(reasonAllocation).Inc()
		return nil, err
	}

	p.arenas = append(p.arenas, a)
	p.metrics.arenasCreated.Inc()
	p.metrics.allocatedBytes.Add(float64(a.stride * a.capacity))
	level.Debug(p.logger).Log("msg", "allocated arena", "arena", a.id, "arenas", len(p.arenas))
	return a, nil
}

// Clear destroys every arena regardless of outstanding leases. Handles leased
// before Clear report ErrArenaReclaimed from Data and their Release is a no-op.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, a := range p.arenas {
		p.metrics.allocatedBytes.Sub(float64(a.destroy()))
		p.metrics.arenasReclaimed.WithLabelValues(reasonClear).Inc()
	}
	p.arenas = nil
}

// SweepIdleArenas destroys every arena that has had no leased slot for at
// least maxIdle and returns how many were destroyed.
func (p *Pool) SweepIdleArenas(maxIdle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	kept := p.arenas[:0]
	reclaimed := 0
	for _, a := range p.arenas {
		n, ok := a.destroyIfIdle(now, maxIdle)
		if !ok {
			kept = append(kept, a)
			continue
		}
		reclaimed++
		p.metrics.allocatedBytes.Sub(float64(n))
		p.metrics.arenasReclaimed.WithLabelValues(reasonIdle).Inc()
		level.Debug(p.logger).Log("msg", "reclaimed idle arena", "arena", a.id)
	}
	clear(p.arenas[len(kept):])
	p.arenas = kept
	return reclaimed
}

// IsAllocated reports whether the pool owns at least one arena.
func (p *Pool) IsAllocated() bool {
	return p.ArenaCount() > 0
}

// ArenaCount returns the number of live arenas.
func (p *Pool) ArenaCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.arenas)
}

// Config returns the configuration the pool was created with.
func (p *Pool) Config() Config {
	return p.cfg
}

// snapshot returns the live arenas without holding the lock afterwards.
func (p *Pool) snapshot() []*Arena {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Arena, len(p.arenas))
	copy(out, p.arenas)
	return out
}
