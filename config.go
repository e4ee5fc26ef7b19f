package arenapool

import (
	"flag"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultElementsPerArena is the arena capacity used when none is configured.
	DefaultElementsPerArena = 64

	// DefaultIdleTimeout is how long an arena may stay empty before a sweep destroys it.
	DefaultIdleTimeout = 5 * time.Second
)

// Config holds the settings of a Pool.
type Config struct {
	// ElementSize is the byte size of one element. There is no default.
	ElementSize      int           `yaml:"element_size"`
	ElementsPerArena int           `yaml:"elements_per_arena"`
	MaxArenas        int           `yaml:"max_arenas"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	DisableZeroing   bool          `yaml:"disable_zeroing"`
}

// RegisterFlags registers the pool flags without a prefix.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("", f)
}

// RegisterFlagsWithPrefix registers the pool flags, each name prefixed with prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.ElementSize, prefix+"element-size", 0, "Size in bytes of a single pooled element. Must be set.")
	f.IntVar(&cfg.ElementsPerArena, prefix+"elements-per-arena", DefaultElementsPerArena, "Number of elements allocated together in one arena.")
	f.IntVar(&cfg.MaxArenas, prefix+"max-arenas", 0, "Maximum number of arenas the pool may hold at once. 0 means unlimited.")
	f.DurationVar(&cfg.IdleTimeout, prefix+"idle-timeout", DefaultIdleTimeout, "How long an arena must stay empty before it is reclaimed.")
	f.DurationVar(&cfg.SweepInterval, prefix+"sweep-interval", DefaultIdleTimeout, "How often idle arenas are swept.")
	f.BoolVar(&cfg.DisableZeroing, prefix+"disable-zeroing", false, "Do not clear element memory when it is leased.")
}

// Validate checks the whole configuration.
func (cfg *Config) Validate() error {
	if err := cfg.validateLayout(); err != nil {
		return err
	}
	if cfg.MaxArenas < 0 {
		return errors.Errorf("invalid max arenas %d", cfg.MaxArenas)
	}
	if cfg.IdleTimeout < 0 {
		return errors.Errorf("invalid idle timeout %s", cfg.IdleTimeout)
	}
	if cfg.SweepInterval < 0 {
		return errors.Errorf("invalid sweep interval %s", cfg.SweepInterval)
	}
	return nil
}

// validateLayout checks the settings a Pool needs to allocate an arena.
func (cfg *Config) validateLayout() error {
	if cfg.ElementSize <= 0 {
		return errors.Wrapf(ErrInvalidElementSize, "got %d", cfg.ElementSize)
	}
	if cfg.ElementsPerArena <= 0 {
		return errors.Wrapf(ErrInvalidElementsPerArena, "got %d", cfg.ElementsPerArena)
	}
	return nil
}
