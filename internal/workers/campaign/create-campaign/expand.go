package createcampaign

import (
	"time"

	"stream-monetization-workers/internal/models"
)

type ExpandParams struct {
	CampaignID         string
	Template           *models.NotificationTemplate
	Event              *models.Event
	Streamer           *models.Streamer
	Registrations      []models.Registration
	Now                time.Time
	Location           *time.Location
	UnsubscribeBaseURL string
	MaxAttempts        int
	NewID              func() string
}

type Expansion struct {
	Sends             []models.NotificationSend
	SkippedPastDue    int
	SkippedNoAddress  int
	SkippedCondition  int
	SkippedNoTemplate int
	UnknownConditions []models.ScheduleCondition
}

// Expand turns a template into one pending send per registration, schedule
// entry and channel. Sends that would fire at or before Now are dropped.
func Expand(p ExpandParams) Expansion {
	var out Expansion
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	unknown := map[models.ScheduleCondition]bool{}

	for i := range p.Registrations {
		reg := &p.Registrations[i]
		vars := NewVariables(reg, p.Event, p.Streamer, loc, p.UnsubscribeBaseURL)

		for _, entry := range p.Template.NotificationSchedule {
			scheduledFor := p.Event.StartTime.Add(time.Duration(entry.OffsetHours * float64(time.Hour)))

			for _, ch := range entry.Channels {
				if !scheduledFor.After(p.Now) {
					out.SkippedPastDue++
					continue
				}

				holds, known := conditionHolds(entry.Condition, reg)
				if !known && !unknown[entry.Condition] {
					unknown[entry.Condition] = true
					out.UnknownConditions = append(out.UnknownConditions, entry.Condition)
				}
				if !holds {
					out.SkippedCondition++
					continue
				}

				address := reg.Address(ch)
				if address == "" {
					out.SkippedNoAddress++
					continue
				}

				send, ok := render(p.Template, ch, vars)
				if !ok {
					out.SkippedNoTemplate++
					continue
				}
				send.ID = p.NewID()
				send.CampaignID = p.CampaignID
				send.RegistrationID = reg.ID
				send.SendType = ch
				send.RecipientAddress = address
				send.ScheduledFor = scheduledFor.UTC()
				send.Status = models.SendPending
				send.Provider = ch.Provider()
				send.MaxAttempts = p.MaxAttempts
				out.Sends = append(out.Sends, send)
			}
		}
	}
	return out
}

func render(tpl *models.NotificationTemplate, ch models.Channel, vars Variables) (models.NotificationSend, bool) {
	switch ch {
	case models.ChannelEmail:
		if tpl.EmailTemplate == nil {
			return models.NotificationSend{}, false
		}
		return models.NotificationSend{
			Subject:     Render(tpl.EmailTemplate.Subject, vars),
			ContentText: Render(tpl.EmailTemplate.Text, vars),
			ContentHTML: Render(tpl.EmailTemplate.HTML, vars),
		}, true
	case models.ChannelSMS:
		if tpl.SMSTemplate == nil {
			return models.NotificationSend{}, false
		}
		return models.NotificationSend{
			ContentText: Render(tpl.SMSTemplate.Body, vars),
		}, true
	}
	return models.NotificationSend{}, false
}
