package repository

import (
	"context"
	"database/sql"
	"fmt"

	"stream-monetization-workers/internal/common/database"
	"stream-monetization-workers/internal/models"

	"github.com/lib/pq"
)

type CampaignRepository struct {
	db *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) GetTemplate(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	var t models.NotificationTemplate
	var campaignType string
	var emailTpl, smsTpl, schedule, segments []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT id, streamer_id, name, campaign_type, email_template, sms_template,
		       notification_schedule, personalization_fields, audience_segments, ab_test_enabled
		FROM notification_templates
		WHERE id = $1`, id).Scan(
		&t.ID, &t.StreamerID, &t.Name, &campaignType, &emailTpl, &smsTpl,
		&schedule, pq.Array(&t.PersonalizationFields), &segments, &t.ABTestEnabled,
	)
	if err != nil {
		return nil, notFound(err)
	}
	t.CampaignType = models.CampaignType(campaignType)

	if len(emailTpl) > 0 {
		t.EmailTemplate = &models.EmailTemplate{}
		if err := fromJSONB(emailTpl, t.EmailTemplate); err != nil {
			return nil, err
		}
	}
	if len(smsTpl) > 0 {
		t.SMSTemplate = &models.SMSTemplate{}
		if err := fromJSONB(smsTpl, t.SMSTemplate); err != nil {
			return nil, err
		}
	}
	if err := fromJSONB(schedule, &t.NotificationSchedule); err != nil {
		return nil, err
	}
	if err := fromJSONB(segments, &t.AudienceSegments); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *CampaignRepository) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	err := r.db.QueryRowContext(ctx, `
		SELECT id, streamer_id, title, start_time, COALESCE(timezone, ''),
		       COALESCE(join_url, ''), COALESCE(replay_url, '')
		FROM events
		WHERE id = $1`, id).Scan(
		&e.ID, &e.StreamerID, &e.Title, &e.StartTime, &e.Timezone, &e.JoinURL, &e.ReplayURL,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *CampaignRepository) GetStreamer(ctx context.Context, id string) (*models.Streamer, error) {
	var s models.Streamer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(name, ''), email, COALESCE(company_name, '')
		FROM streamers
		WHERE id = $1`, id).Scan(&s.ID, &s.Name, &s.Email, &s.CompanyName)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// CreateWithSends persists the campaign and its expanded sends atomically.
func (r *CampaignRepository) CreateWithSends(ctx context.Context, c *models.Campaign, sends []models.NotificationSend) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO campaigns (id, event_id, stream_id, template_id, streamer_id, name, target_audience_count, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ID, c.EventID, nullString(c.StreamID), c.TemplateID, c.StreamerID, c.Name,
			c.TargetAudienceCount, string(c.Status), c.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert campaign: %w", err)
		}

		for i := range sends {
			s := &sends[i]
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO notification_sends (
					id, campaign_id, registration_id, send_type, recipient_address, subject,
					content_text, content_html, scheduled_for, status, provider, attempts, max_attempts
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
				s.ID, s.CampaignID, s.RegistrationID, string(s.SendType), s.RecipientAddress,
				nullString(s.Subject), s.ContentText, nullString(s.ContentHTML), s.ScheduledFor,
				string(s.Status), s.Provider, s.Attempts, s.MaxAttempts,
			); err != nil {
				return fmt.Errorf("insert notification send %s: %w", s.ID, err)
			}
		}
		return nil
	})
}
