package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"stream-monetization-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestChatRepository_SaveAnalysis(t *testing.T) {
	tests := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{name: "updates message row", rows: 1},
		{name: "missing message", rows: 0, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(`UPDATE chat_messages`).
				WithArgs("msg-1", 0.5, 0.7, 0.3, 0.3,
					sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
					sqlmock.AnyArg(), "heuristic").
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			result := &models.AnalysisResult{
				SentimentScore:      0.5,
				PurchaseIntentScore: 0.7,
				UrgencyScore:        0.3,
				EngagementScore:     0.3,
				BuyingSignals:       []string{"price"},
				Source:              models.SourceHeuristic,
			}
			err := NewChatRepository(db).SaveAnalysis(context.Background(), "msg-1", result)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSuggestionRepository_SaveBatch(t *testing.T) {
	suggestions := []models.Suggestion{
		{ID: "s-1", StreamID: "stream-1", SuggestionType: models.SuggestionSalesOpportunity, PriorityLevel: models.PriorityHigh},
		{ID: "s-2", StreamID: "stream-1", SuggestionType: models.SuggestionObjectionHandling, PriorityLevel: models.PriorityMedium},
	}

	t.Run("commits all rows", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO ai_suggestions`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO ai_suggestions`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := NewSuggestionRepository(db).SaveBatch(context.Background(), suggestions)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on insert failure", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO ai_suggestions`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO ai_suggestions`).WillReturnError(errors.New("constraint violation"))
		mock.ExpectRollback()

		err := NewSuggestionRepository(db).SaveBatch(context.Background(), suggestions)
		assert.ErrorContains(t, err, "s-2")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		db, mock := newMock(t)
		require.NoError(t, NewSuggestionRepository(db).SaveBatch(context.Background(), nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSuggestionRepository_Resolve(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSuggestionRepository(db)

	mock.ExpectExec(`UPDATE ai_suggestions`).
		WithArgs("s-1", "accepted").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.Resolve(context.Background(), "s-1", models.SuggestionAccepted)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE ai_suggestions`).
		WithArgs("s-1", "dismissed").
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.Resolve(context.Background(), "s-1", models.SuggestionDismissed)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViewerRepository_GetViewer(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("loads counts", func(t *testing.T) {
		db, mock := newMock(t)
		rows := sqlmock.NewRows([]string{
			"id", "stream_id", "registration_id", "duration_seconds", "interactions_count",
			"converted", "conversion_value", "chat_count", "event_count", "recent_count",
		}).AddRow("viewer-1", "stream-1", "reg-1", 1800, 10, false, int64(0), 4, 7, 2)
		mock.ExpectQuery(`SELECT v.id, v.stream_id`).WithArgs("viewer-1", since).WillReturnRows(rows)

		v, err := NewViewerRepository(db).GetViewer(context.Background(), "viewer-1", since)
		require.NoError(t, err)
		assert.Equal(t, 1800, v.DurationSeconds)
		assert.Equal(t, 4, v.ChatMessageCount)
		assert.Equal(t, 7, v.BehaviorEventCount)
		assert.Equal(t, 2, v.RecentEventCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing viewer", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(`SELECT v.id, v.stream_id`).WithArgs("ghost", since).WillReturnError(sql.ErrNoRows)

		_, err := NewViewerRepository(db).GetViewer(context.Background(), "ghost", since)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCampaignRepository_GetTemplate(t *testing.T) {
	db, mock := newMock(t)
	rows := sqlmock.NewRows([]string{
		"id", "streamer_id", "name", "campaign_type", "email_template", "sms_template",
		"notification_schedule", "personalization_fields", "audience_segments", "ab_test_enabled",
	}).AddRow(
		"tpl-1", "streamer-1", "Reminders", "event_reminder",
		[]byte(`{"subject":"Hi {{first_name}}","text":"See you at {{event_time}}"}`),
		nil,
		[]byte(`[{"offset_hours":-24,"channels":["email","sms"]},{"offset_hours":-0.5,"channels":["sms"],"condition":"not_attended"}]`),
		"{first_name,event_time}",
		[]byte(`[{"name":"vip","conditions":[{"field":"source","operator":"equals","value":"ads"}]}]`),
		false,
	)
	mock.ExpectQuery(`FROM notification_templates`).WithArgs("tpl-1").WillReturnRows(rows)

	tpl, err := NewCampaignRepository(db).GetTemplate(context.Background(), "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, tpl.EmailTemplate)
	assert.Nil(t, tpl.SMSTemplate)
	assert.Equal(t, "Hi {{first_name}}", tpl.EmailTemplate.Subject)
	require.Len(t, tpl.NotificationSchedule, 2)
	assert.Equal(t, -24.0, tpl.NotificationSchedule[0].OffsetHours)
	assert.Equal(t, models.ConditionNotAttended, tpl.NotificationSchedule[1].Condition)
	assert.Equal(t, []string{"first_name", "event_time"}, tpl.PersonalizationFields)
	require.Len(t, tpl.AudienceSegments, 1)
	assert.Equal(t, models.OpEquals, tpl.AudienceSegments[0].Conditions[0].Operator)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepository_CreateWithSends(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO campaigns`).
		WithArgs("camp-1", "event-1", nil, "tpl-1", "streamer-1", "Launch", 2, "active", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO notification_sends`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO notification_sends`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	campaign := &models.Campaign{
		ID: "camp-1", EventID: "event-1", TemplateID: "tpl-1", StreamerID: "streamer-1",
		Name: "Launch", TargetAudienceCount: 2, Status: models.CampaignActive, CreatedAt: now,
	}
	sends := []models.NotificationSend{
		{ID: "send-1", CampaignID: "camp-1", SendType: models.ChannelEmail, Status: models.SendPending, MaxAttempts: 3},
		{ID: "send-2", CampaignID: "camp-1", SendType: models.ChannelSMS, Status: models.SendPending, MaxAttempts: 3},
	}
	require.NoError(t, NewCampaignRepository(db).CreateWithSends(context.Background(), campaign, sends))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_ClaimDue(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(5 * time.Minute)

	rows := sqlmock.NewRows([]string{
		"id", "campaign_id", "registration_id", "send_type", "recipient_address",
		"subject", "content_text", "content_html", "scheduled_for", "status", "provider",
		"attempts", "max_attempts",
	}).
		AddRow("send-2", "camp-1", "reg-1", "sms", "+15550001", "", "Starting soon", "", now.Add(-time.Minute), "pending", "sns", 0, 3).
		AddRow("send-1", "camp-1", "reg-1", "email", "a@example.com", "Hi", "Body", "", now.Add(-time.Hour), "pending", "ses", 1, 3)

	mock.ExpectQuery(`UPDATE notification_sends\s+SET claim_token`).
		WithArgs("token-1", until, now, 100).
		WillReturnRows(rows)

	sends, err := NewNotificationRepository(db).ClaimDue(context.Background(), now, 100, "token-1", until)
	require.NoError(t, err)
	require.Len(t, sends, 2)
	assert.Equal(t, "send-1", sends[0].ID)
	assert.Equal(t, "send-2", sends[1].ID)
	assert.Equal(t, "token-1", sends[0].ClaimToken)
	assert.Equal(t, models.ChannelSMS, sends[1].SendType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_MarkSentClaimLost(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`SET status = 'sent'`).
		WithArgs("send-1", "stale-token", now, "msg-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewNotificationRepository(db).MarkSent(context.Background(), "send-1", "stale-token", "msg-1", 1, now)
	assert.ErrorIs(t, err, ErrClaimLost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionRepository_Refund(t *testing.T) {
	t.Run("reverses aggregates by stored amount", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE conversion_events`).
			WithArgs("conv-1").
			WillReturnRows(sqlmock.NewRows([]string{"stream_id", "amount", "aggregated"}).AddRow("stream-1", int64(5000), true))
		mock.ExpectExec(`UPDATE streams`).
			WithArgs("stream-1", int64(5000)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		ok, err := NewConversionRepository(db).Refund(context.Background(), "conv-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("never aggregated skips the reversal", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE conversion_events`).
			WithArgs("conv-1").
			WillReturnRows(sqlmock.NewRows([]string{"stream_id", "amount", "aggregated"}).AddRow("stream-1", int64(5000), false))
		mock.ExpectCommit()

		ok, err := NewConversionRepository(db).Refund(context.Background(), "conv-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not completed leaves aggregates alone", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE conversion_events`).
			WithArgs("conv-1").
			WillReturnRows(sqlmock.NewRows([]string{"stream_id", "amount", "aggregated"}))
		mock.ExpectCommit()

		ok, err := NewConversionRepository(db).Refund(context.Background(), "conv-1")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConversionRepository_IncrementStream(t *testing.T) {
	t.Run("first increment flags and counts", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE conversion_events SET aggregated = TRUE`).
			WithArgs("conv-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE streams`).
			WithArgs("stream-1", int64(5000)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := NewConversionRepository(db).IncrementStream(context.Background(), "conv-1", "stream-1", 5000)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already counted is a no-op", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE conversion_events SET aggregated = TRUE`).
			WithArgs("conv-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := NewConversionRepository(db).IncrementStream(context.Background(), "conv-1", "stream-1", 5000)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing stream rolls the flag back", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE conversion_events SET aggregated = TRUE`).
			WithArgs("conv-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE streams`).
			WithArgs("stream-1", int64(5000)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := NewConversionRepository(db).IncrementStream(context.Background(), "conv-1", "stream-1", 5000)
		require.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConversionRepository_GetByPaymentIntentID(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "stream_id", "viewer_id", "registration_id", "conversion_type", "product_name",
		"amount", "currency", "quantity", "payment_intent_id", "customer_id", "payment_status",
		"invoice_number", "invoice_url", "conversion_trigger", "ai_suggestion_id",
		"ai_contribution_score", "customer_details", "fulfillment_status", "created_at", "updated_at",
	}).AddRow(
		"conv-1", "stream-1", "viewer-1", "", "purchase", "Course",
		int64(5000), "usd", 1, "pi_123", "cus_1", "pending",
		"", "", "chat", "sugg-1",
		0.8, []byte(`{"email":"buyer@example.com","name":"Ada"}`), "pending", now, now,
	)
	mock.ExpectQuery(`FROM conversion_events WHERE payment_intent_id`).WithArgs("pi_123").WillReturnRows(rows)

	c, err := NewConversionRepository(db).GetByPaymentIntentID(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, c.PaymentStatus)
	assert.Equal(t, "buyer@example.com", c.CustomerDetails.Email)
	assert.True(t, c.IsAIAttributed())
	assert.NoError(t, mock.ExpectationsWereMet())
}
