package config

import "time"

// GateConfig bounds how many calls may be in flight at once, globally and
// per client, and how long a worker will poll for a free slot.
type GateConfig struct {
	GlobalMaxConcurrentCalls  int           `yaml:"global_max_concurrent_calls"`
	DefaultClientMaxConcurrent int          `yaml:"default_client_max_concurrent_calls"`
	PollInterval              time.Duration `yaml:"poll_interval"`
	MaxPollAttempts           int           `yaml:"max_poll_attempts"`
	CountCacheTTL             time.Duration `yaml:"count_cache_ttl"`
}

func loadGateConfig() *GateConfig {
	return &GateConfig{
		GlobalMaxConcurrentCalls:   getEnvAsInt("GLOBAL_MAX_CONCURRENT_CALLS", getEnvAsInt("GLOBAL_MAX_CALLS", 50)),
		DefaultClientMaxConcurrent: getEnvAsInt("DEFAULT_CLIENT_MAX_CONCURRENT_CALLS", 10),
		PollInterval:               getEnvAsDuration("GATE_POLL_INTERVAL", 2*time.Second),
		MaxPollAttempts:            getEnvAsInt("GATE_MAX_POLL_ATTEMPTS", 1000),
		CountCacheTTL:              getEnvAsDuration("GATE_COUNT_CACHE_TTL", time.Second),
	}
}
