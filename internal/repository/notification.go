package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"stream-monetization-workers/internal/models"
)

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ClaimDue leases up to limit due pending sends of active campaigns to
// claimToken until claimUntil. Rows locked or leased by another poller are
// skipped. The result is ordered by scheduled_for.
func (r *NotificationRepository) ClaimDue(ctx context.Context, now time.Time, limit int, claimToken string, claimUntil time.Time) ([]models.NotificationSend, error) {
	if limit <= 0 {
		return nil, nil
	}
	if claimToken == "" {
		return nil, fmt.Errorf("claim token is required")
	}

	rows, err := r.db.QueryContext(ctx, `
		UPDATE notification_sends
		SET claim_token = $1, claimed_until = $2
		WHERE id IN (
			SELECT s.id
			FROM notification_sends s
			JOIN campaigns c ON c.id = s.campaign_id
			WHERE s.status = 'pending'
			  AND s.scheduled_for <= $3
			  AND (s.next_retry_at IS NULL OR s.next_retry_at <= $3)
			  AND (s.claimed_until IS NULL OR s.claimed_until < $3)
			  AND c.status = 'active'
			ORDER BY s.scheduled_for ASC
			LIMIT $4
			FOR UPDATE OF s SKIP LOCKED
		)
		RETURNING id, campaign_id, registration_id, send_type, recipient_address,
		          COALESCE(subject, ''), content_text, COALESCE(content_html, ''),
		          scheduled_for, status, provider, attempts, max_attempts`,
		claimToken, claimUntil, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NotificationSend
	for rows.Next() {
		var s models.NotificationSend
		var sendType, status string
		if err := rows.Scan(
			&s.ID, &s.CampaignID, &s.RegistrationID, &sendType, &s.RecipientAddress,
			&s.Subject, &s.ContentText, &s.ContentHTML,
			&s.ScheduledFor, &status, &s.Provider, &s.Attempts, &s.MaxAttempts,
		); err != nil {
			return nil, err
		}
		s.SendType = models.Channel(sendType)
		s.Status = models.SendStatus(status)
		s.ClaimToken = claimToken
		until := claimUntil
		s.ClaimedUntil = &until
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledFor.Before(out[j].ScheduledFor)
	})
	return out, nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id, claimToken, providerMessageID string, attempts int, sentAt time.Time) error {
	return claimed(r.db.ExecContext(ctx, `
		UPDATE notification_sends
		SET status = 'sent', sent_at = $3, provider_message_id = $4, attempts = $5,
		    error_message = NULL, next_retry_at = NULL, claim_token = NULL, claimed_until = NULL
		WHERE id = $1 AND claim_token = $2 AND status = 'pending'`,
		id, claimToken, sentAt, providerMessageID, attempts))
}

// MarkRetry keeps the send pending and hides it from due selection until
// nextRetryAt.
func (r *NotificationRepository) MarkRetry(ctx context.Context, id, claimToken string, attempts int, nextRetryAt time.Time, errMsg string) error {
	return claimed(r.db.ExecContext(ctx, `
		UPDATE notification_sends
		SET attempts = $3, next_retry_at = $4, error_message = $5,
		    claim_token = NULL, claimed_until = NULL
		WHERE id = $1 AND claim_token = $2 AND status = 'pending'`,
		id, claimToken, attempts, nextRetryAt, errMsg))
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, id, claimToken string, attempts int, errMsg string) error {
	return claimed(r.db.ExecContext(ctx, `
		UPDATE notification_sends
		SET status = 'failed', attempts = $3, error_message = $4,
		    next_retry_at = NULL, claim_token = NULL, claimed_until = NULL
		WHERE id = $1 AND claim_token = $2 AND status = 'pending'`,
		id, claimToken, attempts, errMsg))
}

func (r *NotificationRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*models.NotificationSend, error) {
	var s models.NotificationSend
	var sendType, status string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, registration_id, send_type, recipient_address, status,
		       provider, provider_message_id, attempts, max_attempts
		FROM notification_sends
		WHERE provider_message_id = $1`, providerMessageID).Scan(
		&s.ID, &s.CampaignID, &s.RegistrationID, &sendType, &s.RecipientAddress, &status,
		&s.Provider, &s.ProviderMessageID, &s.Attempts, &s.MaxAttempts,
	)
	if err != nil {
		return nil, notFound(err)
	}
	s.SendType = models.Channel(sendType)
	s.Status = models.SendStatus(status)
	return &s, nil
}

// UpdateStatus applies a provider callback transition. It reports false when
// the row was no longer in status from.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id string, from, to models.SendStatus, deliveredAt *time.Time) (bool, error) {
	return changed(r.db.ExecContext(ctx, `
		UPDATE notification_sends
		SET status = $3, delivered_at = COALESCE($4, delivered_at)
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to), deliveredAt))
}

func claimed(result sql.Result, err error) error {
	ok, err := changed(result, err)
	if err != nil {
		return err
	}
	if !ok {
		return ErrClaimLost
	}
	return nil
}
