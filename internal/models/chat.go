// internal/models/chat.go
package models

import "time"

type ChatMessage struct {
	ID       string    `json:"id"`
	Message  string    `json:"message"`
	ViewerID string    `json:"viewer_id"`
	StreamID string    `json:"stream_id"`
	SentAt   time.Time `json:"sent_at"`
}

type AnalysisSource string

const (
	SourceAI        AnalysisSource = "ai"
	SourceHeuristic AnalysisSource = "heuristic"
)

type EmotionalState string

const (
	EmotionExcited    EmotionalState = "excited"
	EmotionInterested EmotionalState = "interested"
	EmotionNeutral    EmotionalState = "neutral"
	EmotionSkeptical  EmotionalState = "skeptical"
	EmotionFrustrated EmotionalState = "frustrated"
)

func (e EmotionalState) Valid() bool {
	switch e {
	case EmotionExcited, EmotionInterested, EmotionNeutral, EmotionSkeptical, EmotionFrustrated:
		return true
	}
	return false
}

type RecommendedTone string

const (
	ToneEnthusiastic RecommendedTone = "enthusiastic"
	ToneInformative  RecommendedTone = "informative"
	ToneReassuring   RecommendedTone = "reassuring"
	ToneUrgent       RecommendedTone = "urgent"
	ToneCasual       RecommendedTone = "casual"
)

func (t RecommendedTone) Valid() bool {
	switch t {
	case ToneEnthusiastic, ToneInformative, ToneReassuring, ToneUrgent, ToneCasual:
		return true
	}
	return false
}

type AIAnalysis struct {
	Summary               string          `json:"summary"`
	KeyInsights           []string        `json:"key_insights"`
	EmotionalState        EmotionalState  `json:"emotional_state"`
	ConversionProbability float64         `json:"conversion_probability"`
	RecommendedTone       RecommendedTone `json:"recommended_tone"`
}

// AnalysisResult is written back onto the chat message it was derived from.
type AnalysisResult struct {
	SentimentScore      float64        `json:"sentiment_score"`
	PurchaseIntentScore float64        `json:"purchase_intent_score"`
	UrgencyScore        float64        `json:"urgency_score"`
	EngagementScore     float64        `json:"engagement_score"`
	DetectedEntities    []string       `json:"detected_entities"`
	ConversationTopics  []string       `json:"conversation_topics"`
	ObjectionSignals    []string       `json:"objection_signals"`
	BuyingSignals       []string       `json:"buying_signals"`
	AIAnalysis          AIAnalysis     `json:"ai_analysis"`
	Source              AnalysisSource `json:"source"`
}

// Clamp forces every bounded score into range and replaces invalid enum
// values, so both scoring paths produce the same guarantees.
func (r *AnalysisResult) Clamp() {
	r.SentimentScore = ClampFloat(r.SentimentScore, -1, 1)
	r.PurchaseIntentScore = ClampFloat(r.PurchaseIntentScore, 0, 1)
	r.UrgencyScore = ClampFloat(r.UrgencyScore, 0, 1)
	r.EngagementScore = ClampFloat(r.EngagementScore, 0, 1)
	r.AIAnalysis.ConversionProbability = ClampFloat(r.AIAnalysis.ConversionProbability, 0, 1)

	if !r.AIAnalysis.EmotionalState.Valid() {
		r.AIAnalysis.EmotionalState = EmotionNeutral
	}
	if !r.AIAnalysis.RecommendedTone.Valid() {
		r.AIAnalysis.RecommendedTone = ToneInformative
	}

	r.DetectedEntities = nonNil(r.DetectedEntities)
	r.ConversationTopics = nonNil(r.ConversationTopics)
	r.ObjectionSignals = nonNil(r.ObjectionSignals)
	r.BuyingSignals = nonNil(r.BuyingSignals)
	r.AIAnalysis.KeyInsights = nonNil(r.AIAnalysis.KeyInsights)
}

// ClampFloat returns v bounded to [lo, hi]. NaN maps to lo.
func ClampFloat(v, lo, hi float64) float64 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
