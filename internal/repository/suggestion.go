package repository

import (
	"context"
	"database/sql"
	"fmt"

	"stream-monetization-workers/internal/common/database"
	"stream-monetization-workers/internal/models"

	"github.com/lib/pq"
)

type SuggestionRepository struct {
	db *sql.DB
}

func NewSuggestionRepository(db *sql.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// SaveBatch inserts all suggestions in one transaction.
func (r *SuggestionRepository) SaveBatch(ctx context.Context, suggestions []models.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for i := range suggestions {
			s := &suggestions[i]
			contextData, err := toJSONB(s.ContextData)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ai_suggestions (
					id, stream_id, viewer_id, message_id, suggestion_type, suggestion_text,
					confidence_score, priority_level, reasoning, context_data,
					behavioral_triggers, recommended_actions, suggested_response,
					suggested_offer, suggested_registration_link, status, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
				s.ID, s.StreamID, nullString(s.ViewerID), nullString(s.MessageID),
				string(s.SuggestionType), s.SuggestionText,
				s.ConfidenceScore, string(s.PriorityLevel), s.Reasoning, contextData,
				pq.Array(s.BehavioralTriggers), pq.Array(s.RecommendedActions),
				nullString(s.SuggestedResponse), nullString(s.SuggestedOffer),
				s.SuggestedRegistrationLink, string(models.SuggestionPending), s.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert suggestion %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

func (r *SuggestionRepository) Get(ctx context.Context, id string) (*models.Suggestion, error) {
	var s models.Suggestion
	var suggestionType, priority, status string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, stream_id, COALESCE(viewer_id, ''), COALESCE(message_id, ''),
		       suggestion_type, suggestion_text, confidence_score, priority_level,
		       status, led_to_conversion, COALESCE(conversion_value, 0), created_at
		FROM ai_suggestions
		WHERE id = $1`, id).Scan(
		&s.ID, &s.StreamID, &s.ViewerID, &s.MessageID,
		&suggestionType, &s.SuggestionText, &s.ConfidenceScore, &priority,
		&status, &s.LedToConversion, &s.ConversionValue, &s.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	s.SuggestionType = models.SuggestionType(suggestionType)
	s.PriorityLevel = models.PriorityLevel(priority)
	s.Status = models.SuggestionStatus(status)
	return &s, nil
}

// Resolve moves a pending suggestion to status. It reports false when the
// suggestion was no longer pending.
func (r *SuggestionRepository) Resolve(ctx context.Context, id string, status models.SuggestionStatus) (bool, error) {
	return changed(r.db.ExecContext(ctx, `
		UPDATE ai_suggestions
		SET status = $2, resolved_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id, string(status)))
}

func (r *SuggestionRepository) MarkLedToConversion(ctx context.Context, id string, value int64) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE ai_suggestions
		SET led_to_conversion = TRUE, conversion_value = $2
		WHERE id = $1`, id, value))
}
