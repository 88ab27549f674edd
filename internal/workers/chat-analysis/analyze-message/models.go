package analyzemessage

import (
	"time"

	"stream-monetization-workers/internal/models"
)

type Input struct {
	MessageID string    `json:"messageId"`
	Message   string    `json:"message"`
	ViewerID  string    `json:"viewerId"`
	StreamID  string    `json:"streamId"`
	SentAt    time.Time `json:"sentAt"`
}

type Output struct {
	MessageID string                 `json:"messageId"`
	Analysis  *models.AnalysisResult `json:"analysis"`
	Cached    bool                   `json:"cached"`
}
