package createcampaign

import "time"

type Config struct {
	Timeout            time.Duration
	MaxAttempts        int
	UnsubscribeBaseURL string
	DefaultTimezone    string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		MaxAttempts:     3,
		DefaultTimezone: "UTC",
	}
}
