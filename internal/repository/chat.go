package repository

import (
	"context"
	"database/sql"

	"stream-monetization-workers/internal/models"

	"github.com/lib/pq"
)

type ChatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// SaveAnalysis writes an analysis back onto its chat message row.
func (r *ChatRepository) SaveAnalysis(ctx context.Context, messageID string, result *models.AnalysisResult) error {
	aiAnalysis, err := toJSONB(result.AIAnalysis)
	if err != nil {
		return err
	}

	return requireRow(r.db.ExecContext(ctx, `
		UPDATE chat_messages
		SET sentiment_score = $2,
		    purchase_intent_score = $3,
		    urgency_score = $4,
		    engagement_score = $5,
		    detected_entities = $6,
		    conversation_topics = $7,
		    objection_signals = $8,
		    buying_signals = $9,
		    ai_analysis = $10,
		    analysis_source = $11,
		    analyzed_at = NOW()
		WHERE id = $1`,
		messageID,
		result.SentimentScore,
		result.PurchaseIntentScore,
		result.UrgencyScore,
		result.EngagementScore,
		pq.Array(result.DetectedEntities),
		pq.Array(result.ConversationTopics),
		pq.Array(result.ObjectionSignals),
		pq.Array(result.BuyingSignals),
		aiAnalysis,
		string(result.Source),
	))
}
