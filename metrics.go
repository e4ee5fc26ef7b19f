package arenapool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	reasonInvalidConfig = "invalid_config"
	reasonExhausted     = "exhausted"
	reasonAllocation    = "allocation"

	reasonIdle  = "idle"
	reasonClear = "clear"
)

// ArenaMetrics contains statistical information about one arena.
type ArenaMetrics struct {
	ID          uint64    // Identifier assigned by the pool
	Capacity    int       // Number of slots
	InUse       int       // Slots currently leased
	Free        int       // Slots available
	IdleSince   time.Time // When the arena last became empty
	Utilization float64   // Ratio of leased to total slots (0.0-1.0)
}

// Metrics returns a snapshot of arena statistics.
func (a *Arena) Metrics() ArenaMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := ArenaMetrics{ID: a.id, IdleSince: a.becameEmptyAt}
	if a.storage == nil {
		return m
	}
	m.Capacity = a.capacity
	m.InUse = a.leased
	m.Free = int(a.free.Count())
	m.Utilization = float64(a.leased) / float64(a.capacity)
	return m
}

// PoolMetrics contains statistical information about a pool.
type PoolMetrics struct {
	Arenas           int     // Live arenas
	Capacity         int     // Slots across all arenas
	InUse            int     // Slots currently leased
	Free             int     // Slots available without growing
	BytesAllocated   int     // Bytes held by arena buffers
	ElementSize      int     // Configured element size
	ElementsPerArena int     // Configured arena capacity
	Utilization      float64 // Ratio of leased to total slots (0.0-1.0)
}

// Metrics returns a snapshot of pool statistics.
func (p *Pool) Metrics() PoolMetrics {
	m := PoolMetrics{
		ElementSize:      p.cfg.ElementSize,
		ElementsPerArena: p.cfg.ElementsPerArena,
	}
	for _, a := range p.snapshot() {
		am := a.Metrics()
		m.Arenas++
		m.Capacity += am.Capacity
		m.InUse += am.InUse
		m.Free += am.Free
		m.BytesAllocated += am.Capacity * alignUp(p.cfg.ElementSize)
	}
	if m.Capacity > 0 {
		m.Utilization = float64(m.InUse) / float64(m.Capacity)
	}
	return m
}

// Arenas returns a snapshot of every live arena, in scan order.
func (p *Pool) Arenas() []ArenaMetrics {
	arenas := p.snapshot()
	out := make([]ArenaMetrics, 0, len(arenas))
	for _, a := range arenas {
		out = append(out, a.Metrics())
	}
	return out
}

type poolMetrics struct {
	leases          prometheus.Counter
	failures        *prometheus.CounterVec
	arenasCreated   prometheus.Counter
	arenasReclaimed *prometheus.CounterVec
	allocatedBytes  prometheus.Gauge
}

func newPoolMetrics(reg prometheus.Registerer, p *Pool) *poolMetrics {
	m := &poolMetrics{
		leases: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "arenapool_leases_total",
			Help: "Total number of elements leased from the pool.",
		}),
		failures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "arenapool_lease_failures_total",
			Help: "Total number of lease requests that could not be satisfied.",
		}, []string{"reason"}),
		arenasCreated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "arenapool_arenas_created_total",
			Help: "Total number of arenas allocated by the pool.",
		}),
		arenasReclaimed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "arenapool_arenas_reclaimed_total",
			Help: "Total number of arenas destroyed by the pool.",
		}, []string{"reason"}),
		allocatedBytes: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "arenapool_allocated_bytes",
			Help: "Bytes currently held by arena buffers.",
		}),
	}

	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "arenapool_arenas",
		Help: "Number of live arenas.",
	}, func() float64 {
		return float64(p.ArenaCount())
	})
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "arenapool_leased_elements",
		Help: "Number of elements currently leased.",
	}, func() float64 {
		return float64(p.Metrics().InUse)
	})

	// Pre-create the label values so they are exported before the first failure.
	for _, reason := range []string{reasonInvalidConfig, reasonExhausted, reasonAllocation} {
		m.failures.WithLabelValues(reason)
	}
	for _, reason := range []string{reasonIdle, reasonClear} {
		m.arenasReclaimed.WithLabelValues(reason)
	}
	return m
}
