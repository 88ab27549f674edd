package repository

import (
	"context"
	"database/sql"
	"time"

	"stream-monetization-workers/internal/models"

	"github.com/lib/pq"
)

type ViewerRepository struct {
	db *sql.DB
}

func NewViewerRepository(db *sql.DB) *ViewerRepository {
	return &ViewerRepository{db: db}
}

// GetViewer loads the viewer with its chat and behavior-event counts.
// Events at or after recentSince count as recent.
func (r *ViewerRepository) GetViewer(ctx context.Context, id string, recentSince time.Time) (*models.Viewer, error) {
	var v models.Viewer
	err := r.db.QueryRowContext(ctx, `
		SELECT v.id, v.stream_id, COALESCE(v.registration_id, ''),
		       v.duration_seconds, v.interactions_count, v.converted, v.conversion_value,
		       (SELECT COUNT(*) FROM chat_messages m WHERE m.viewer_id = v.id),
		       (SELECT COUNT(*) FROM behavior_events e WHERE e.viewer_id = v.id),
		       (SELECT COUNT(*) FROM behavior_events e WHERE e.viewer_id = v.id AND e.occurred_at >= $2)
		FROM viewers v
		WHERE v.id = $1`, id, recentSince).Scan(
		&v.ID, &v.StreamID, &v.RegistrationID,
		&v.DurationSeconds, &v.InteractionsCount, &v.Converted, &v.ConversionValue,
		&v.ChatMessageCount, &v.BehaviorEventCount, &v.RecentEventCount,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *ViewerRepository) SaveScore(ctx context.Context, id string, score float64, insights models.BehavioralInsights, recommendations []string) error {
	analysis, err := toJSONB(insights)
	if err != nil {
		return err
	}
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE viewers
		SET conversion_score = $2, ai_analysis = $3, ai_recommendations = $4, updated_at = NOW()
		WHERE id = $1`, id, score, analysis, pq.Array(recommendations)))
}

// MarkConverted flags the viewer as converted and adds value to its total.
func (r *ViewerRepository) MarkConverted(ctx context.Context, id string, value int64) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE viewers
		SET converted = TRUE, conversion_value = conversion_value + $2, updated_at = NOW()
		WHERE id = $1`, id, value))
}
