package engine

import (
	"fmt"
	"time"

	"github.com/blockberries/devberry/service"
)

// Config holds configuration for the consensus engine
type Config struct {
	// PollInterval bounds how long the loop waits for an update before it
	// re-checks the publish timer
	PollInterval time.Duration

	// RetryInterval is the sleep between summarize/finalize attempts while
	// the pending block is not ready
	RetryInterval time.Duration

	// MaxForkDepth ignores competing blocks more than this many blocks below
	// the chain head without walking back to them. Zero means no limit.
	MaxForkDepth uint64

	// BlockCacheSize is the number of blocks kept in memory for fork choice.
	// Zero disables the cache.
	BlockCacheSize int
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		PollInterval:   10 * time.Millisecond,
		RetryInterval:  service.DefaultRetryInterval,
		MaxForkDepth:   0,
		BlockCacheSize: 1024,
	}
}

// ValidateBasic performs basic validation of the config
func (cfg *Config) ValidateBasic() error {
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %s", ErrInvalidConfig, cfg.PollInterval)
	}
	if cfg.RetryInterval <= 0 {
		return fmt.Errorf("%w: retry interval must be positive, got %s", ErrInvalidConfig, cfg.RetryInterval)
	}
	if cfg.BlockCacheSize < 0 {
		return fmt.Errorf("%w: block cache size must not be negative, got %d", ErrInvalidConfig, cfg.BlockCacheSize)
	}
	return nil
}
