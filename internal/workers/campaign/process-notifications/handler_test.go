package processnotifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"stream-monetization-workers/internal/common/aws"
	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/models"
	"stream-monetization-workers/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type markCall struct {
	kind      string
	id        string
	token     string
	attempts  int
	messageID string
	retryAt   time.Time
	errMsg    string
}

type MockSendStore struct {
	due      []models.NotificationSend
	claimErr error
	markErr  map[string]error

	limit      int
	claimToken string
	claimUntil time.Time
	calls      []markCall
}

func (m *MockSendStore) ClaimDue(_ context.Context, _ time.Time, limit int, claimToken string, claimUntil time.Time) ([]models.NotificationSend, error) {
	m.limit = limit
	m.claimToken = claimToken
	m.claimUntil = claimUntil
	return m.due, m.claimErr
}

func (m *MockSendStore) MarkSent(_ context.Context, id, token, messageID string, attempts int, _ time.Time) error {
	m.calls = append(m.calls, markCall{kind: "sent", id: id, token: token, attempts: attempts, messageID: messageID})
	return m.markErr[id]
}

func (m *MockSendStore) MarkRetry(_ context.Context, id, token string, attempts int, next time.Time, errMsg string) error {
	m.calls = append(m.calls, markCall{kind: "retry", id: id, token: token, attempts: attempts, retryAt: next, errMsg: errMsg})
	return m.markErr[id]
}

func (m *MockSendStore) MarkFailed(_ context.Context, id, token string, attempts int, errMsg string) error {
	m.calls = append(m.calls, markCall{kind: "failed", id: id, token: token, attempts: attempts, errMsg: errMsg})
	return m.markErr[id]
}

type MockEmailSender struct {
	fail map[string]error
	sent []aws.EmailMessage
}

func (m *MockEmailSender) Send(ctx context.Context, msg aws.EmailMessage) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("send called without deadline")
	}
	if err := m.fail[msg.To]; err != nil {
		return "", err
	}
	m.sent = append(m.sent, msg)
	return "ses-" + msg.To, nil
}

type MockSMSSender struct {
	err  error
	sent []string
}

func (m *MockSMSSender) SendSMS(_ context.Context, _, to, body string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, to+":"+body)
	return "sns-" + to, nil
}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, store *MockSendStore, email *MockEmailSender, sms *MockSMSSender) *Handler {
	opts := HandlerOptions{
		Config: LoadConfig(),
		Store:  store,
		Logger: logger.NewTestLogger(t),
	}
	if email != nil {
		opts.Email = email
	}
	if sms != nil {
		opts.SMS = sms
	}
	h := NewHandler(opts)
	h.now = func() time.Time { return fixedNow }
	return h
}

func emailSend(id, to string, attempts int) models.NotificationSend {
	return models.NotificationSend{
		ID:               id,
		SendType:         models.ChannelEmail,
		RecipientAddress: to,
		Subject:          "Starting soon",
		ContentText:      "See you there",
		Status:           models.SendPending,
		Attempts:         attempts,
		MaxAttempts:      3,
	}
}

func TestNextRetryAt(t *testing.T) {
	assert.Equal(t, fixedNow.Add(2*time.Minute), NextRetryAt(fixedNow, 1))
	assert.Equal(t, fixedNow.Add(4*time.Minute), NextRetryAt(fixedNow, 2))
	assert.Equal(t, fixedNow.Add(8*time.Minute), NextRetryAt(fixedNow, 3))
}

func TestHandler_Execute_MixedBatch(t *testing.T) {
	store := &MockSendStore{
		due: []models.NotificationSend{
			emailSend("s1", "ok@example.com", 0),
			emailSend("s2", "flaky@example.com", 0),
			emailSend("s3", "dead@example.com", 2),
			{ID: "s4", SendType: models.ChannelSMS, RecipientAddress: "+15550001", ContentText: "Live now", MaxAttempts: 3},
		},
	}
	email := &MockEmailSender{fail: map[string]error{
		"flaky@example.com": errors.New("throttled"),
		"dead@example.com":  errors.New("mailbox unavailable"),
	}}
	sms := &MockSMSSender{}
	h := newTestHandler(t, store, email, sms)

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Equal(t, &Output{Claimed: 4, Sent: 2, Retried: 1, Failed: 1}, out)
	assert.Equal(t, 100, store.limit)
	assert.Equal(t, fixedNow.Add(5*time.Minute), store.claimUntil)
	require.NotEmpty(t, store.claimToken)

	require.Len(t, store.calls, 4)
	for _, c := range store.calls {
		assert.Equal(t, store.claimToken, c.token, "every write carries the claim token")
	}

	assert.Equal(t, markCall{kind: "sent", id: "s1", token: store.claimToken, attempts: 1, messageID: "ses-ok@example.com"}, store.calls[0])

	retry := store.calls[1]
	assert.Equal(t, "retry", retry.kind)
	assert.Equal(t, 1, retry.attempts)
	assert.Equal(t, fixedNow.Add(2*time.Minute), retry.retryAt)
	assert.Equal(t, "throttled", retry.errMsg)

	failed := store.calls[2]
	assert.Equal(t, "failed", failed.kind)
	assert.Equal(t, 3, failed.attempts)
	assert.Equal(t, "mailbox unavailable", failed.errMsg)

	assert.Equal(t, "sent", store.calls[3].kind)
	assert.Equal(t, "sns-+15550001", store.calls[3].messageID)
	assert.Equal(t, []string{"+15550001:Live now"}, sms.sent)
}

func TestHandler_Execute_BatchSize(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{name: "default", requested: 0, want: 100},
		{name: "smaller batch", requested: 10, want: 10},
		{name: "oversized batch is capped", requested: 5000, want: 100},
		{name: "negative uses default", requested: -1, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockSendStore{}
			h := newTestHandler(t, store, &MockEmailSender{}, &MockSMSSender{})

			out, err := h.Execute(context.Background(), &Input{BatchSize: tt.requested})
			require.NoError(t, err)
			assert.Equal(t, &Output{}, out)
			assert.Equal(t, tt.want, store.limit)
		})
	}
}

func TestHandler_Execute_ConfiguredBatchAboveCap(t *testing.T) {
	store := &MockSendStore{}
	h := newTestHandler(t, store, &MockEmailSender{}, &MockSMSSender{})
	h.config.BatchSize = 1000

	_, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, MaxBatchSize, store.limit)
}

func TestHandler_Execute_StopsWhenLeaseRunsOut(t *testing.T) {
	tests := []struct {
		name         string
		claimedUntil time.Time
		wantSent     int
	}{
		{name: "lease already expired", claimedUntil: fixedNow.Add(-time.Second), wantSent: 0},
		{name: "lease ends inside send timeout", claimedUntil: fixedNow.Add(5 * time.Second), wantSent: 0},
		{name: "lease covers the send", claimedUntil: fixedNow.Add(time.Minute), wantSent: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := emailSend("s1", "a@example.com", 0)
			second := emailSend("s2", "b@example.com", 0)
			first.ClaimedUntil = &tt.claimedUntil
			second.ClaimedUntil = &tt.claimedUntil
			store := &MockSendStore{due: []models.NotificationSend{first, second}}
			email := &MockEmailSender{}
			h := newTestHandler(t, store, email, &MockSMSSender{})

			out, err := h.Execute(context.Background(), &Input{})
			require.NoError(t, err)
			assert.Equal(t, 2, out.Claimed)
			assert.Equal(t, tt.wantSent, out.Sent)
			assert.Len(t, email.sent, tt.wantSent)
			assert.Len(t, store.calls, tt.wantSent)
		})
	}
}

func TestHandler_Execute_ClaimError(t *testing.T) {
	store := &MockSendStore{claimErr: errors.New("deadlock detected")}
	h := newTestHandler(t, store, &MockEmailSender{}, &MockSMSSender{})

	out, err := h.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.Nil(t, out)

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestHandler_Execute_ClaimLostAndMissingTransport(t *testing.T) {
	store := &MockSendStore{
		due: []models.NotificationSend{
			emailSend("s1", "ok@example.com", 0),
			{ID: "s2", SendType: models.ChannelSMS, RecipientAddress: "+15550001", MaxAttempts: 1},
		},
		markErr: map[string]error{"s1": repository.ErrClaimLost},
	}
	h := newTestHandler(t, store, &MockEmailSender{}, nil)

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)

	// s1 was sent but another poller took the row over; s2 has no SMS
	// transport and exhausts its single attempt.
	assert.Equal(t, &Output{Claimed: 2, Sent: 0, Retried: 0, Failed: 1}, out)
	require.Len(t, store.calls, 2)
	assert.Equal(t, "failed", store.calls[1].kind)
	assert.Contains(t, store.calls[1].errMsg, "sms transport not configured")
}

func TestHandler_Execute_DefaultsMaxAttempts(t *testing.T) {
	send := emailSend("s1", "flaky@example.com", 2)
	send.MaxAttempts = 0
	store := &MockSendStore{due: []models.NotificationSend{send}}
	email := &MockEmailSender{fail: map[string]error{"flaky@example.com": errors.New("timeout")}}
	h := newTestHandler(t, store, email, &MockSMSSender{})

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 3, store.calls[0].attempts)
}
