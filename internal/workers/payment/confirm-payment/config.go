package confirmpayment

import "time"

type Config struct {
	Timeout           time.Duration
	TaxRate           float64
	InvoiceFromEmail  string
	InvoiceIssuerName string
	StepTimeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           60 * time.Second,
		TaxRate:           0.08,
		InvoiceIssuerName: "Stream Monetization",
		StepTimeout:       15 * time.Second,
	}
}
