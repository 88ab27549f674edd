package scoreviewerbehavior

import (
	"math"

	"stream-monetization-workers/internal/models"
)

const (
	fullDurationSeconds  = 1800
	fullInteractions     = 10
	shortWatchSeconds    = 300
	busyEventThreshold   = 5
	highlyActiveRecent   = 3
	activeRecent         = 1
	highScoreThreshold   = 0.7
	mediumScoreThreshold = 0.4
)

const (
	recHigh       = "High conversion potential: present the offer directly and share the purchase link."
	recMedium     = "Warming up: highlight customer results and invite questions about the offer."
	recLow        = "Low engagement so far: use polls or direct questions to draw this viewer in."
	recNoChat     = "Viewer has not chatted yet: ask a direct question to start a conversation."
	recShortWatch = "Short watch time: recap the key value points for late joiners."
)

func Score(v *models.Viewer) (float64, ScoreBreakdown) {
	b := ScoreBreakdown{
		Duration:   math.Min(float64(v.DurationSeconds)/fullDurationSeconds, 1.0) * 0.3,
		Engagement: math.Min(float64(v.InteractionsCount)/fullInteractions, 1.0) * 0.3,
		Behavior:   0.1,
	}
	if v.ChatMessageCount > 0 {
		b.Chat = 0.2
	}
	if v.BehaviorEventCount > busyEventThreshold {
		b.Behavior = 0.2
	}
	return round4(b.Duration + b.Engagement + b.Chat + b.Behavior), b
}

func Pattern(recentEvents, totalEvents int) models.EngagementPattern {
	switch {
	case totalEvents == 0:
		return models.PatternPassive
	case recentEvents > highlyActiveRecent:
		return models.PatternHighlyActive
	case recentEvents > activeRecent:
		return models.PatternActive
	case totalEvents > busyEventThreshold:
		return models.PatternModeratelyActive
	}
	return models.PatternPassive
}

func Recommendations(score float64, v *models.Viewer) []string {
	var recs []string
	switch {
	case score > highScoreThreshold:
		recs = append(recs, recHigh)
	case score > mediumScoreThreshold:
		recs = append(recs, recMedium)
	default:
		recs = append(recs, recLow)
	}
	if v.ChatMessageCount == 0 {
		recs = append(recs, recNoChat)
	}
	if v.DurationSeconds < shortWatchSeconds {
		recs = append(recs, recShortWatch)
	}
	return recs
}

func Insights(v *models.Viewer) models.BehavioralInsights {
	return models.BehavioralInsights{
		EngagementPattern: Pattern(v.RecentEventCount, v.BehaviorEventCount),
		WatchTimeMinutes:  round4(float64(v.DurationSeconds) / 60),
		Interactions:      v.InteractionsCount,
		ChatParticipation: v.ChatMessageCount > 0,
		TotalEvents:       v.BehaviorEventCount,
		RecentEvents:      v.RecentEventCount,
	}
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
