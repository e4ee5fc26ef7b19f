package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavanmanishd/arenapool"
)

func TestParseConfig(t *testing.T) {
	t.Run("flags only", func(t *testing.T) {
		cfg, err := parseConfig([]string{"-pool.element-size=32", "-workers=2"})
		require.NoError(t, err)
		assert.Equal(t, 32, cfg.Pool.ElementSize)
		assert.Equal(t, arenapool.DefaultElementsPerArena, cfg.Pool.ElementsPerArena)
		assert.Equal(t, 2, cfg.Workers)
	})

	t.Run("file with flag override", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
pool:
  element_size: 512
  elements_per_arena: 8
  idle_timeout: 2s
workers: 3
max_hold: 10ms
log_level: debug
`), 0o600))

		cfg, err := parseConfig([]string{"-config.file=" + path, "-workers=6"})
		require.NoError(t, err)
		assert.Equal(t, 512, cfg.Pool.ElementSize)
		assert.Equal(t, 8, cfg.Pool.ElementsPerArena)
		assert.Equal(t, 2*time.Second, cfg.Pool.IdleTimeout)
		assert.Equal(t, 10*time.Millisecond, cfg.MaxHold)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 6, cfg.Workers, "flags override the file")
	})

	t.Run("missing element size", func(t *testing.T) {
		_, err := parseConfig(nil)
		assert.ErrorIs(t, err, arenapool.ErrInvalidElementSize)
	})

	t.Run("invalid workers", func(t *testing.T) {
		_, err := parseConfig([]string{"-pool.element-size=8", "-workers=0"})
		assert.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		_, err := newLogger(lvl)
		assert.NoError(t, err, lvl)
	}
	_, err := newLogger("verbose")
	assert.Error(t, err)
}

func TestWorkerStep(t *testing.T) {
	pool := arenapool.NewPool(arenapool.Config{ElementSize: 16, ElementsPerArena: 2})
	defer pool.Clear()

	w := newWorker(1, pool, time.Millisecond, log.NewNopLogger())
	for i := 0; i < 10; i++ {
		require.NoError(t, w.step(context.Background()))
	}

	m := pool.Metrics()
	assert.Equal(t, 1, m.Arenas)
	assert.Zero(t, m.InUse)
}

func TestRunStopsAfterDuration(t *testing.T) {
	cfg, err := parseConfig([]string{
		"-pool.element-size=64",
		"-pool.elements-per-arena=4",
		"-workers=3",
		"-duration=50ms",
		"-max-hold=2ms",
		"-server.http-listen-address=",
	})
	require.NoError(t, err)
	require.NoError(t, run(cfg, log.NewNopLogger()))
}
