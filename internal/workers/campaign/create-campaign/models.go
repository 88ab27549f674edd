package createcampaign

import "stream-monetization-workers/internal/models"

type Input struct {
	EventID    string `json:"eventId" validate:"required"`
	TemplateID string `json:"templateId" validate:"required"`
	StreamerID string `json:"streamerId"`
	StreamID   string `json:"streamId,omitempty"`
	Name       string `json:"name,omitempty"`
}

type Output struct {
	CampaignID          string                `json:"campaignId"`
	Status              models.CampaignStatus `json:"status"`
	TargetAudienceCount int                   `json:"targetAudienceCount"`
	SendsCreated        int                   `json:"sendsCreated"`
	SkippedPastDue      int                   `json:"skippedPastDue"`
	SkippedNoAddress    int                   `json:"skippedNoAddress"`
	SkippedCondition    int                   `json:"skippedCondition"`
	SkippedNoTemplate   int                   `json:"skippedNoTemplate"`
}
