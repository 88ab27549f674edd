package analyzemessage

import "time"

type Config struct {
	Timeout       time.Duration
	CacheTTL      time.Duration
	AnalysisIndex string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       30 * time.Second,
		CacheTTL:      time.Hour,
		AnalysisIndex: "chat-analyses",
	}
}
