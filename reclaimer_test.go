package arenapool

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/grafana/dskit/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type countingSweeper struct {
	calls   atomic.Int64
	maxIdle atomic.Duration
}

func (s *countingSweeper) SweepIdleArenas(maxIdle time.Duration) int {
	s.calls.Inc()
	s.maxIdle.Store(maxIdle)
	return 0
}

func TestReclaimerSweepsPeriodically(t *testing.T) {
	sweeper := &countingSweeper{}
	r := NewReclaimer(sweeper, 5*time.Millisecond, time.Minute, nil)

	ctx := context.Background()
	require.NoError(t, services.StartAndAwaitRunning(ctx, r))
	t.Cleanup(func() {
		require.NoError(t, services.StopAndAwaitTerminated(ctx, r))
	})

	require.Eventually(t, func() bool {
		return sweeper.calls.Load() >= 3
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, time.Minute, sweeper.maxIdle.Load())
}

func TestReclaimerDefaults(t *testing.T) {
	sweeper := &countingSweeper{}
	r := NewReclaimer(sweeper, 0, -time.Second, nil)
	assert.Equal(t, DefaultIdleTimeout, r.maxIdle)
	assert.NotNil(t, r.logger)
	assert.Equal(t, services.New, r.State())
}

func TestReclaimerDestroysIdleArenas(t *testing.T) {
	mock := clock.NewMock()
	p := NewPool(Config{
		ElementSize:      16,
		ElementsPerArena: 2,
		IdleTimeout:      time.Second,
		SweepInterval:    5 * time.Millisecond,
	}, WithClock(mock))
	defer p.Clear()

	leased := leaseN(t, p, 3)
	require.Equal(t, 2, p.ArenaCount())
	leased[0].Release()
	leased[1].Release()

	r := NewPoolReclaimer(p, nil)
	ctx := context.Background()
	require.NoError(t, services.StartAndAwaitRunning(ctx, r))
	t.Cleanup(func() {
		require.NoError(t, services.StopAndAwaitTerminated(ctx, r))
	})

	// The pool clock has not moved, so the empty arena is not idle long enough yet.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, p.ArenaCount())

	mock.Add(time.Second)
	require.Eventually(t, func() bool {
		return p.ArenaCount() == 1
	}, 5*time.Second, time.Millisecond)
	assert.True(t, leased[2].Valid())
}
