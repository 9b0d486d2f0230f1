package config

import "time"

// WarmupConfig controls the best-effort bot warmup preflight.
type WarmupConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Attempts        int           `yaml:"attempts"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
}

func loadWarmupConfig() *WarmupConfig {
	return &WarmupConfig{
		Enabled:        getEnvAsBool("BOT_WARMUP_ENABLED", true),
		Attempts:       getEnvAsInt("BOT_WARMUP_ATTEMPTS", 3),
		AttemptTimeout: getEnvAsDuration("BOT_WARMUP_ATTEMPT_TIMEOUT", 5*time.Second),
		RetryBackoff:   getEnvAsDuration("BOT_WARMUP_RETRY_BACKOFF", 500*time.Millisecond),
	}
}
