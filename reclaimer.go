package arenapool

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
)

// Sweeper is implemented by pools that can drop idle arenas.
type Sweeper interface {
	SweepIdleArenas(maxIdle time.Duration) int
}

// Reclaimer periodically destroys arenas that have been idle for longer than
// a threshold. It is a dskit service: start it with services.StartAndAwaitRunning.
type Reclaimer struct {
	services.Service

	pool    Sweeper
	maxIdle time.Duration
	logger  log.Logger
}

// NewReclaimer creates a reclaimer sweeping pool every interval. A non-positive
// interval or maxIdle falls back to DefaultIdleTimeout.
func NewReclaimer(pool Sweeper, interval, maxIdle time.Duration, logger log.Logger) *Reclaimer {
	if interval <= 0 {
		interval = DefaultIdleTimeout
	}
	if maxIdle <= 0 {
		maxIdle = DefaultIdleTimeout
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	r := &Reclaimer{
		pool:    pool,
		maxIdle: maxIdle,
		logger:  logger,
	}
	r.Service = services.NewTimerService(interval, nil, r.iteration, nil).WithName("arena reclaimer")
	return r
}

// NewPoolReclaimer creates a reclaimer using the pool's configured sweep
// interval and idle timeout.
func NewPoolReclaimer(p *Pool, logger log.Logger) *Reclaimer {
	cfg := p.Config()
	return NewReclaimer(p, cfg.SweepInterval, cfg.IdleTimeout, logger)
}

func (r *Reclaimer) iteration(_ context.Context) error {
	if n := r.pool.SweepIdleArenas(r.maxIdle); n > 0 {
		level.Debug(r.logger).Log("msg", "reclaimed idle arenas", "reclaimed", n)
	}
	return nil
}
