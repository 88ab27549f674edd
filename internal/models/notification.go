// internal/models/notification.go
package models

import "time"

type SendStatus string

const (
	SendPending      SendStatus = "pending"
	SendSent         SendStatus = "sent"
	SendDelivered    SendStatus = "delivered"
	SendFailed       SendStatus = "failed"
	SendBounced      SendStatus = "bounced"
	SendSpam         SendStatus = "spam"
	SendUnsubscribed SendStatus = "unsubscribed"
)

func (s SendStatus) Valid() bool {
	switch s {
	case SendPending, SendSent, SendDelivered, SendFailed, SendBounced, SendSpam, SendUnsubscribed:
		return true
	}
	return false
}

// CanTransitionTo reports whether a send may move from s to next. The
// delivery worker owns pending->sent/failed; provider callbacks own the rest.
func (s SendStatus) CanTransitionTo(next SendStatus) bool {
	switch s {
	case SendPending:
		return next == SendSent || next == SendFailed
	case SendSent:
		return next == SendDelivered || next == SendBounced || next == SendSpam || next == SendUnsubscribed
	case SendDelivered:
		return next == SendSpam || next == SendUnsubscribed
	}
	return false
}

type NotificationSend struct {
	ID                string     `json:"id"`
	CampaignID        string     `json:"campaign_id"`
	RegistrationID    string     `json:"registration_id"`
	SendType          Channel    `json:"send_type"`
	RecipientAddress  string     `json:"recipient_address"`
	Subject           string     `json:"subject,omitempty"`
	ContentText       string     `json:"content_text"`
	ContentHTML       string     `json:"content_html,omitempty"`
	ScheduledFor      time.Time  `json:"scheduled_for"`
	Status            SendStatus `json:"status"`
	Provider          string     `json:"provider"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	Attempts          int        `json:"attempts"`
	MaxAttempts       int        `json:"max_attempts"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	NextRetryAt       *time.Time `json:"next_retry_at,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	ClaimToken        string     `json:"-"`
	ClaimedUntil      *time.Time `json:"-"`
}
