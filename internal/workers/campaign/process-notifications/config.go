package processnotifications

import "time"

// MaxBatchSize bounds one run no matter what the caller asks for.
const MaxBatchSize = 100

type Config struct {
	Timeout     time.Duration
	BatchSize   int
	MaxAttempts int
	ClaimLease  time.Duration
	SendTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     5 * time.Minute,
		BatchSize:   100,
		MaxAttempts: 3,
		ClaimLease:  5 * time.Minute,
		SendTimeout: 15 * time.Second,
	}
}
