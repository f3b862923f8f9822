package reaper

import "time"

// Config controls the housekeeping sweep cadence and batch sizes.
type Config struct {
	Interval  time.Duration
	BatchSize int

	// CounterRetention bounds how long spent daily counters are kept
	// before being pruned.
	CounterRetention time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:         time.Minute,
		BatchSize:        500,
		CounterRetention: 90 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.CounterRetention <= 0 {
		c.CounterRetention = defaults.CounterRetention
	}
	return c
}
