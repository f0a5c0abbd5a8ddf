package sheetorm

import (
	"log/slog"
	"time"
)

// Config represents configuration shared by a Client and the tables it binds
type Config struct {
	Store         KVStore       // Store for sequence counters (default: volatile MemoryStore)
	Logger        *slog.Logger  // Logger (default: slog.Default())
	ReadRetries   int           // Retries for snapshot reads; writes are never retried (default: 0)
	RetryInterval time.Duration // Base interval between read retries for exponential backoff (default: 100ms)
}

// withDefaults returns a copy with zero values filled in
func (c *Config) withDefaults() Config {
	var cfg Config
	if c != nil {
		cfg = *c
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.ReadRetries < 0 {
		cfg.ReadRetries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}

	return cfg
}

// backoff mirrors the load retry policy: doubling from RetryInterval, capped at 2s
func (c Config) backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * c.RetryInterval
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	return d
}
