package generatesuggestions

import "stream-monetization-workers/internal/models"

type Input struct {
	MessageID     string                 `json:"messageId"`
	StreamID      string                 `json:"streamId"`
	ViewerID      string                 `json:"viewerId"`
	Message       string                 `json:"message"`
	Analysis      *models.AnalysisResult `json:"analysis" validate:"required"`
	ViewerContext *models.ViewerContext  `json:"viewerContext,omitempty"`
}

type Output struct {
	Suggestions []models.Suggestion   `json:"suggestions"`
	Count       int                   `json:"count"`
	Source      models.AnalysisSource `json:"source"`
}
