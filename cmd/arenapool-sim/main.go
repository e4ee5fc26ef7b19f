// Command arenapool-sim drives an arena pool with a synthetic lease workload
// and exposes the pool metrics over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/pavanmanishd/arenapool"
)

type config struct {
	Pool          arenapool.Config `yaml:"pool"`
	Workers       int              `yaml:"workers"`
	Duration      time.Duration    `yaml:"duration"`
	MaxHold       time.Duration    `yaml:"max_hold"`
	ListenAddress string           `yaml:"listen_address"`
	LogLevel      string           `yaml:"log_level"`
}

func (cfg *config) RegisterFlags(f *flag.FlagSet) {
	cfg.Pool.RegisterFlagsWithPrefix("pool.", f)
	f.IntVar(&cfg.Workers, "workers", 4, "Number of goroutines leasing elements concurrently.")
	f.DurationVar(&cfg.Duration, "duration", 30*time.Second, "How long to run the workload. 0 runs until interrupted.")
	f.DurationVar(&cfg.MaxHold, "max-hold", 50*time.Millisecond, "Upper bound of how long a worker holds a lease.")
	f.StringVar(&cfg.ListenAddress, "server.http-listen-address", ":8080", "Address serving /metrics. Empty disables the server.")
	f.StringVar(&cfg.LogLevel, "log.level", "info", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error]")
}

func (cfg *config) Validate() error {
	if err := cfg.Pool.Validate(); err != nil {
		return errors.Wrap(err, "invalid pool config")
	}
	if cfg.Workers <= 0 {
		return errors.Errorf("invalid number of workers %d", cfg.Workers)
	}
	if cfg.MaxHold <= 0 {
		return errors.Errorf("invalid max hold %s", cfg.MaxHold)
	}
	return nil
}

// parseConfig applies defaults, then the YAML file, then command line flags.
func parseConfig(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("arenapool-sim", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	configFile := fs.String("config.file", "", "YAML configuration file to load before applying flags.")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if *configFile != "" {
		buf, err := os.ReadFile(*configFile)
		if err != nil {
			return cfg, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config file %s", *configFile)
		}
		// Flags given explicitly win over the file.
		if err := fs.Parse(args); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func newLogger(lvl string) (log.Logger, error) {
	var filter level.Option
	switch lvl {
	case "debug":
		filter = level.AllowDebug()
	case "info":
		filter = level.AllowInfo()
	case "warn":
		filter = level.AllowWarn()
	case "error":
		filter = level.AllowError()
	default:
		return nil, errors.Errorf("unrecognized log level %q", lvl)
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, filter)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller), nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		level.Error(logger).Log("msg", "simulation failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config, logger log.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if cfg.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pool := arenapool.NewPool(cfg.Pool, arenapool.WithLogger(logger), arenapool.WithRegisterer(reg))
	defer pool.Clear()

	reclaimer := arenapool.NewPoolReclaimer(pool, logger)
	if err := services.StartAndAwaitRunning(ctx, reclaimer); err != nil {
		return errors.Wrap(err, "start reclaimer")
	}
	defer func() {
		if err := services.StopAndAwaitTerminated(context.Background(), reclaimer); err != nil {
			level.Warn(logger).Log("msg", "reclaimer did not stop cleanly", "err", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.ListenAddress != "" {
		srv := &http.Server{Addr: cfg.ListenAddress, Handler: metricsHandler(reg)}
		g.Go(func() error {
			level.Info(logger).Log("msg", "serving metrics", "addr", cfg.ListenAddress)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	for i := 0; i < cfg.Workers; i++ {
		w := newWorker(i, pool, cfg.MaxHold, logger)
		g.Go(func() error {
			return w.run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m := pool.Metrics()
	level.Info(logger).Log(
		"msg", "simulation finished",
		"arenas", m.Arenas,
		"capacity", m.Capacity,
		"in_use", m.InUse,
		"bytes_allocated", m.BytesAllocated,
		"utilization", fmt.Sprintf("%.2f", m.Utilization),
	)
	return nil
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

type worker struct {
	id      int
	pool    *arenapool.Pool
	maxHold time.Duration
	rnd     *rand.Rand
	logger  log.Logger
}

func newWorker(id int, pool *arenapool.Pool, maxHold time.Duration, logger log.Logger) *worker {
	return &worker{
		id:      id,
		pool:    pool,
		maxHold: maxHold,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano() + int64(id))),
		logger:  log.With(logger, "worker", id),
	}
}

func (w *worker) run(ctx context.Context) error {
	for ctx.Err() == nil {
		if err := w.step(ctx); err != nil {
			level.Warn(w.logger).Log("msg", "lease failed", "err", err)
			if !sleep(ctx, w.maxHold) {
				return nil
			}
		}
	}
	return nil
}

// step leases one element, fills it, holds it for a random time and releases it.
func (w *worker) step(ctx context.Context) error {
	e, err := w.pool.Lease()
	if err != nil {
		return err
	}
	defer e.Release()

	buf, err := e.Data()
	if err != nil {
		return err
	}
	w.rnd.Read(buf)
	e.SetTag(int64(w.id))
	e.Touch()

	sleep(ctx, time.Duration(w.rnd.Int63n(int64(w.maxHold))+1))
	return nil
}

// sleep waits for d and reports false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
