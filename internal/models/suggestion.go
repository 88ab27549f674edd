// internal/models/suggestion.go
package models

import "time"

type SuggestionType string

const (
	SuggestionSalesOpportunity      SuggestionType = "sales_opportunity"
	SuggestionObjectionHandling     SuggestionType = "objection_handling"
	SuggestionEngagementBoost       SuggestionType = "engagement_boost"
	SuggestionProductRecommendation SuggestionType = "product_recommendation"
)

func (t SuggestionType) Valid() bool {
	switch t {
	case SuggestionSalesOpportunity, SuggestionObjectionHandling, SuggestionEngagementBoost, SuggestionProductRecommendation:
		return true
	}
	return false
}

type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "low"
	PriorityMedium PriorityLevel = "medium"
	PriorityHigh   PriorityLevel = "high"
	PriorityUrgent PriorityLevel = "urgent"
)

func (p PriorityLevel) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank orders priorities for sorting; higher is more urgent.
func (p PriorityLevel) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	}
	return 0
}

type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionAccepted  SuggestionStatus = "accepted"
	SuggestionDismissed SuggestionStatus = "dismissed"
)

type Suggestion struct {
	ID                        string                 `json:"id,omitempty"`
	StreamID                  string                 `json:"stream_id,omitempty"`
	ViewerID                  string                 `json:"viewer_id,omitempty"`
	MessageID                 string                 `json:"message_id,omitempty"`
	SuggestionType            SuggestionType         `json:"suggestion_type"`
	SuggestionText            string                 `json:"suggestion_text"`
	ConfidenceScore           float64                `json:"confidence_score"`
	PriorityLevel             PriorityLevel          `json:"priority_level"`
	Reasoning                 string                 `json:"reasoning"`
	ContextData               map[string]interface{} `json:"context_data"`
	BehavioralTriggers        []string               `json:"behavioral_triggers"`
	RecommendedActions        []string               `json:"recommended_actions"`
	SuggestedResponse         string                 `json:"suggested_response,omitempty"`
	SuggestedOffer            string                 `json:"suggested_offer,omitempty"`
	SuggestedRegistrationLink bool                   `json:"suggested_registration_link"`
	Status                    SuggestionStatus       `json:"status,omitempty"`
	LedToConversion           bool                   `json:"led_to_conversion"`
	ConversionValue           int64                  `json:"conversion_value,omitempty"`
	CreatedAt                 time.Time              `json:"created_at,omitempty"`
}

// ViewerContext is optional extra input to suggestion generation.
type ViewerContext struct {
	ViewerID        string  `json:"viewer_id"`
	ConversionScore float64 `json:"conversion_score"`
	Converted       bool    `json:"converted"`
	WatchSeconds    int     `json:"watch_seconds"`
	MessageCount    int     `json:"message_count"`
}
