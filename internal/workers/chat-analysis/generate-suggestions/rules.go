package generatesuggestions

import (
	"fmt"

	"stream-monetization-workers/internal/models"
)

const (
	salesIntentThreshold  = 0.6
	urgentIntentThreshold = 0.8
	hotViewerThreshold    = 0.7
)

// FallbackSuggestions derives suggestions from the analysis alone when the
// completion provider is unavailable.
func FallbackSuggestions(message string, analysis *models.AnalysisResult, viewer *models.ViewerContext) []models.Suggestion {
	out := []models.Suggestion{}

	if analysis.PurchaseIntentScore > salesIntentThreshold {
		priority := models.PriorityHigh
		if analysis.PurchaseIntentScore > urgentIntentThreshold {
			priority = models.PriorityUrgent
		}
		out = append(out, models.Suggestion{
			SuggestionType:  models.SuggestionSalesOpportunity,
			SuggestionText:  "This viewer is showing buying intent. Respond directly and share the offer.",
			ConfidenceScore: analysis.PurchaseIntentScore,
			PriorityLevel:   priority,
			Reasoning:       fmt.Sprintf("purchase intent score %.2f", analysis.PurchaseIntentScore),
			ContextData: map[string]interface{}{
				"message":               message,
				"purchase_intent_score": analysis.PurchaseIntentScore,
				"urgency_score":         analysis.UrgencyScore,
			},
			BehavioralTriggers:        nonNil(analysis.BuyingSignals),
			RecommendedActions:        []string{"answer the question on stream", "share the registration link", "mention the current offer"},
			SuggestedResponse:         "Great question! Here's how you can get started today.",
			SuggestedRegistrationLink: true,
		})
	}

	if len(analysis.ObjectionSignals) > 0 {
		out = append(out, models.Suggestion{
			SuggestionType:  models.SuggestionObjectionHandling,
			SuggestionText:  "Address this viewer's concern before moving on.",
			ConfidenceScore: 0.7,
			PriorityLevel:   models.PriorityMedium,
			Reasoning:       fmt.Sprintf("objection signals detected: %v", analysis.ObjectionSignals),
			ContextData: map[string]interface{}{
				"message":           message,
				"objection_signals": analysis.ObjectionSignals,
				"sentiment_score":   analysis.SentimentScore,
			},
			BehavioralTriggers: analysis.ObjectionSignals,
			RecommendedActions: []string{"acknowledge the concern", "share a customer result", "explain the guarantee"},
			SuggestedResponse:  "That's a fair concern. Let me show you what others got out of it.",
		})
	}

	if viewer != nil && viewer.ConversionScore > hotViewerThreshold && !viewer.Converted {
		out = append(out, models.Suggestion{
			SuggestionType:  models.SuggestionProductRecommendation,
			SuggestionText:  "Highly engaged viewer who has not purchased yet. Recommend the best-fit product.",
			ConfidenceScore: models.ClampFloat(viewer.ConversionScore, 0, 1),
			PriorityLevel:   models.PriorityHigh,
			Reasoning:       fmt.Sprintf("viewer conversion score %.2f", viewer.ConversionScore),
			ContextData: map[string]interface{}{
				"viewer_id":        viewer.ViewerID,
				"conversion_score": viewer.ConversionScore,
			},
			BehavioralTriggers: []string{"high_conversion_score"},
			RecommendedActions: []string{"call out the viewer by name", "offer a personal walkthrough"},
		})
	}

	return out
}

// normalize drops suggestions with unknown types and repairs the rest.
func normalize(in []models.Suggestion) []models.Suggestion {
	out := make([]models.Suggestion, 0, len(in))
	for _, s := range in {
		if !s.SuggestionType.Valid() || s.SuggestionText == "" {
			continue
		}
		if !s.PriorityLevel.Valid() {
			s.PriorityLevel = models.PriorityMedium
		}
		s.ConfidenceScore = models.ClampFloat(s.ConfidenceScore, 0, 1)
		if s.ContextData == nil {
			s.ContextData = map[string]interface{}{}
		}
		s.BehavioralTriggers = nonNil(s.BehavioralTriggers)
		s.RecommendedActions = nonNil(s.RecommendedActions)
		out = append(out, s)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
