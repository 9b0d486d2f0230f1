package config

import "time"

// CampaignConfig controls worker heartbeats, orphan recovery, and the
// timeout-sweeper cadence.
type CampaignConfig struct {
	HeartbeatPeriod    time.Duration `yaml:"heartbeat_period"`
	HeartbeatEveryN    int           `yaml:"heartbeat_every_n"`
	OrphanThreshold    time.Duration `yaml:"orphan_threshold"`
	OrphanScanInterval time.Duration `yaml:"orphan_scan_interval"`

	MaxProcessedTime time.Duration `yaml:"max_processed_time"`
	MaxRingingTime   time.Duration `yaml:"max_ringing_time"`
	MaxOngoingTime   time.Duration `yaml:"max_ongoing_time"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`

	ContactListBucket string `yaml:"contact_list_bucket"`
}

func loadCampaignConfig() *CampaignConfig {
	return &CampaignConfig{
		HeartbeatPeriod:    getEnvAsDuration("CAMPAIGN_HEARTBEAT_PERIOD", 30*time.Second),
		HeartbeatEveryN:    getEnvAsInt("CAMPAIGN_HEARTBEAT_EVERY_N", 10),
		OrphanThreshold:    getEnvAsDuration("CAMPAIGN_ORPHAN_THRESHOLD", 2*time.Minute),
		OrphanScanInterval: getEnvAsDuration("CAMPAIGN_ORPHAN_SCAN_INTERVAL", 30*time.Second),

		MaxProcessedTime: getEnvAsDuration("MAX_PROCESSED_TIME", 300*time.Second),
		MaxRingingTime:   getEnvAsDuration("MAX_RINGING_TIME", 180*time.Second),
		MaxOngoingTime:   getEnvAsDuration("MAX_ONGOING_TIME", 3600*time.Second),
		CleanupInterval:  getEnvAsDuration("CLEANUP_INTERVAL", 300*time.Second),

		ContactListBucket: getEnv("CONTACT_LIST_BUCKET", "contact-lists"),
	}
}
