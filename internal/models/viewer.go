// internal/models/viewer.go
package models

type EngagementPattern string

const (
	PatternHighlyActive     EngagementPattern = "highly_active"
	PatternActive           EngagementPattern = "active"
	PatternModeratelyActive EngagementPattern = "moderately_active"
	PatternPassive          EngagementPattern = "passive"
)

// Viewer is the aggregate session record. Owned chat messages and behavior
// events are loaded as counts.
type Viewer struct {
	ID                 string             `json:"id"`
	StreamID           string             `json:"stream_id"`
	RegistrationID     string             `json:"registration_id,omitempty"`
	DurationSeconds    int                `json:"duration_seconds"`
	InteractionsCount  int                `json:"interactions_count"`
	ChatMessageCount   int                `json:"chat_message_count"`
	BehaviorEventCount int                `json:"behavior_event_count"`
	RecentEventCount   int                `json:"recent_event_count"`
	ConversionScore    float64            `json:"conversion_score"`
	AIAnalysis         BehavioralInsights `json:"ai_analysis"`
	AIRecommendations  []string           `json:"ai_recommendations"`
	Converted          bool               `json:"converted"`
	ConversionValue    int64              `json:"conversion_value"`
}

type BehavioralInsights struct {
	EngagementPattern EngagementPattern `json:"engagement_pattern"`
	WatchTimeMinutes  float64           `json:"watch_time_minutes"`
	Interactions      int               `json:"interactions"`
	ChatParticipation bool              `json:"chat_participation"`
	TotalEvents       int               `json:"total_events"`
	RecentEvents      int               `json:"recent_events"`
}
