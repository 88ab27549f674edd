package analyzemessage

import (
	"strings"

	"stream-monetization-workers/internal/models"
)

type SignalKind int

const (
	SignalBuying SignalKind = iota
	SignalEngagement
	SignalObjection
)

func (k SignalKind) String() string {
	switch k {
	case SignalBuying:
		return "buying"
	case SignalEngagement:
		return "engagement"
	case SignalObjection:
		return "objection"
	}
	return "unknown"
}

// Keywords are matched as lowercase substrings of the message.
func (k SignalKind) Keywords() []string {
	switch k {
	case SignalBuying:
		return []string{"buy", "price", "cost", "purchase", "how much", "discount", "deal", "order", "sign up", "interested"}
	case SignalEngagement:
		return []string{"love", "great", "awesome", "amazing", "thanks", "question", "wow", "cool", "helpful"}
	case SignalObjection:
		return []string{"expensive", "too much", "not sure", "scam", "can't afford", "maybe later", "doubt", "cheaper"}
	}
	return nil
}

func (k SignalKind) match(text string) []string {
	matched := []string{}
	for _, kw := range k.Keywords() {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

var urgencyWords = []string{"now", "today"}

// hasUrgency uses the same substring matching as the keyword lists.
func hasUrgency(text string) bool {
	for _, u := range urgencyWords {
		if strings.Contains(text, u) {
			return true
		}
	}
	return false
}

// Heuristic scores a message from the fixed keyword lists. It never fails.
func Heuristic(message string) *models.AnalysisResult {
	text := strings.ToLower(message)

	buying := SignalBuying.match(text)
	engagement := SignalEngagement.match(text)
	objection := SignalObjection.match(text)
	urgent := hasUrgency(text)

	r := &models.AnalysisResult{
		SentimentScore:      0.5,
		PurchaseIntentScore: 0.2,
		UrgencyScore:        0.3,
		EngagementScore:     0.3,
		DetectedEntities:    []string{},
		ConversationTopics:  []string{},
		BuyingSignals:       buying,
		ObjectionSignals:    objection,
		Source:              models.SourceHeuristic,
	}
	if len(buying) > 0 {
		r.PurchaseIntentScore = 0.7
		r.ConversationTopics = append(r.ConversationTopics, SignalBuying.String())
	}
	if len(engagement) > 0 {
		r.EngagementScore = 0.8
		r.ConversationTopics = append(r.ConversationTopics, SignalEngagement.String())
	}
	if len(objection) > 0 {
		r.SentimentScore = -0.2
		r.ConversationTopics = append(r.ConversationTopics, SignalObjection.String())
	}
	if urgent {
		r.UrgencyScore = 0.8
	}

	r.AIAnalysis = models.AIAnalysis{
		Summary:               "keyword heuristic analysis",
		KeyInsights:           heuristicInsights(buying, engagement, objection, urgent),
		EmotionalState:        heuristicEmotion(buying, engagement, objection),
		ConversionProbability: r.PurchaseIntentScore,
		RecommendedTone:       heuristicTone(buying, objection, urgent),
	}
	r.Clamp()
	return r
}

func heuristicInsights(buying, engagement, objection []string, urgent bool) []string {
	insights := []string{}
	if len(buying) > 0 {
		insights = append(insights, "buying signals: "+strings.Join(buying, ", "))
	}
	if len(engagement) > 0 {
		insights = append(insights, "positive engagement")
	}
	if len(objection) > 0 {
		insights = append(insights, "objections: "+strings.Join(objection, ", "))
	}
	if urgent {
		insights = append(insights, "time-sensitive wording")
	}
	return insights
}

func heuristicEmotion(buying, engagement, objection []string) models.EmotionalState {
	switch {
	case len(objection) > 0:
		return models.EmotionSkeptical
	case len(buying) > 0:
		return models.EmotionInterested
	case len(engagement) > 0:
		return models.EmotionExcited
	}
	return models.EmotionNeutral
}

func heuristicTone(buying, objection []string, urgent bool) models.RecommendedTone {
	switch {
	case len(objection) > 0:
		return models.ToneReassuring
	case urgent:
		return models.ToneUrgent
	case len(buying) > 0:
		return models.ToneEnthusiastic
	}
	return models.ToneInformative
}
