package processnotifications

type Input struct {
	BatchSize int `json:"batchSize,omitempty"`
}

type Output struct {
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	Retried int `json:"retried"`
	Failed  int `json:"failed"`
}
