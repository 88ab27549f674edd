// internal/models/campaign.go
package models

import "time"

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// Provider is the transport that delivers sends on this channel.
func (c Channel) Provider() string {
	switch c {
	case ChannelEmail:
		return "ses"
	case ChannelSMS:
		return "sns"
	}
	return ""
}

type CampaignType string

const (
	CampaignEventReminder      CampaignType = "event_reminder"
	CampaignPostEventFollowup  CampaignType = "post_event_followup"
	CampaignConversionSequence CampaignType = "conversion_sequence"
	CampaignWelcomeSeries      CampaignType = "welcome_series"
)

type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

type EmailTemplate struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

type SMSTemplate struct {
	Body string `json:"body"`
}

type ScheduleCondition string

const (
	ConditionAttended     ScheduleCondition = "attended"
	ConditionNotAttended  ScheduleCondition = "not_attended"
	ConditionConverted    ScheduleCondition = "converted"
	ConditionNotConverted ScheduleCondition = "not_converted"
)

type ScheduleEntry struct {
	OffsetHours     float64           `json:"offset_hours"`
	Channels        []Channel         `json:"channels"`
	TemplateVariant string            `json:"template_variant,omitempty"`
	Condition       ScheduleCondition `json:"condition,omitempty"`
}

type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
)

type SegmentCondition struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

type AudienceSegment struct {
	Name       string             `json:"name"`
	Conditions []SegmentCondition `json:"conditions"`
}

type NotificationTemplate struct {
	ID                    string            `json:"id"`
	StreamerID            string            `json:"streamer_id"`
	Name                  string            `json:"name"`
	CampaignType          CampaignType      `json:"campaign_type"`
	EmailTemplate         *EmailTemplate    `json:"email_template,omitempty"`
	SMSTemplate           *SMSTemplate      `json:"sms_template,omitempty"`
	NotificationSchedule  []ScheduleEntry   `json:"notification_schedule"`
	PersonalizationFields []string          `json:"personalization_fields"`
	AudienceSegments      []AudienceSegment `json:"audience_segments"`
	ABTestEnabled         bool              `json:"ab_test_enabled"`
}

type Campaign struct {
	ID                  string         `json:"id"`
	EventID             string         `json:"event_id"`
	StreamID            string         `json:"stream_id,omitempty"`
	TemplateID          string         `json:"template_id"`
	StreamerID          string         `json:"streamer_id"`
	Name                string         `json:"name"`
	TargetAudienceCount int            `json:"target_audience_count"`
	Status              CampaignStatus `json:"status"`
	CreatedAt           time.Time      `json:"created_at"`
}

type Event struct {
	ID         string    `json:"id"`
	StreamerID string    `json:"streamer_id"`
	Title      string    `json:"title"`
	StartTime  time.Time `json:"start_time"`
	Timezone   string    `json:"timezone"`
	JoinURL    string    `json:"join_url"`
	ReplayURL  string    `json:"replay_url"`
}

type Registration struct {
	ID              string                 `json:"id"`
	EventID         string                 `json:"event_id"`
	Email           string                 `json:"email"`
	FirstName       string                 `json:"first_name"`
	LastName        string                 `json:"last_name"`
	Phone           string                 `json:"phone"`
	Company         string                 `json:"company"`
	Source          string                 `json:"source"`
	Attended        bool                   `json:"attended"`
	Converted       bool                   `json:"converted"`
	ConversionValue int64                  `json:"conversion_value"`
	CustomFields    map[string]interface{} `json:"custom_fields"`
	RegisteredAt    time.Time              `json:"registered_at"`
}

func (r *Registration) FullName() string {
	switch {
	case r.FirstName != "" && r.LastName != "":
		return r.FirstName + " " + r.LastName
	case r.FirstName != "":
		return r.FirstName
	}
	return r.LastName
}

// Address returns the recipient address for a channel, empty if unknown.
func (r *Registration) Address(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return r.Email
	case ChannelSMS:
		return r.Phone
	}
	return ""
}

type Streamer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name"`
}
