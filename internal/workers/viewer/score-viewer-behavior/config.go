package scoreviewerbehavior

import "time"

type Config struct {
	Timeout      time.Duration
	RecentWindow time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		RecentWindow: 5 * time.Minute,
	}
}
