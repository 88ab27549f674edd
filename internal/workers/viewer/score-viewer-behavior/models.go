package scoreviewerbehavior

import "stream-monetization-workers/internal/models"

type Input struct {
	ViewerID string `json:"viewerId" validate:"required"`
}

type Output struct {
	ViewerID           string                    `json:"viewerId"`
	ConversionScore    float64                   `json:"conversionScore"`
	BehavioralInsights models.BehavioralInsights `json:"behavioralInsights"`
	Recommendations    []string                  `json:"recommendations"`
	ScoreBreakdown     ScoreBreakdown            `json:"scoreBreakdown"`
}

type ScoreBreakdown struct {
	Duration   float64 `json:"duration"`
	Engagement float64 `json:"engagement"`
	Chat       float64 `json:"chat"`
	Behavior   float64 `json:"behavior"`
}
