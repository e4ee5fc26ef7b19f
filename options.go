package arenapool

import (
	"github.com/benbjohnson/clock"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Pool or a standalone Arena.
type Option func(*options)

type options struct {
	logger     log.Logger
	clock      clock.Clock
	registerer prometheus.Registerer
	noZeroing  bool
}

func defaultOptions() options {
	return options{
		logger: log.NewNopLogger(),
		clock:  clock.New(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used to report configuration errors,
// allocation failures and misuse of lease handles.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock replaces the wall clock. Tests pass a *clock.Mock.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithRegisterer registers the pool's Prometheus collectors with reg.
// Without it the collectors are created but never registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithoutZeroing skips clearing slot bytes on lease. A re-leased slot then
// exposes whatever the previous holder wrote.
func WithoutZeroing() Option {
	return func(o *options) {
		o.noZeroing = true
	}
}
