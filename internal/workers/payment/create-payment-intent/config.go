package createpaymentintent

import "time"

type Config struct {
	Timeout         time.Duration
	DefaultCurrency string
	AIContribution  float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		DefaultCurrency: "usd",
		AIContribution:  0.8,
	}
}
