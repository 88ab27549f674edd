package createcampaign

import (
	"net/url"
	"strings"
	"time"

	"stream-monetization-workers/internal/models"
)

// Variables is the closed set of placeholder values available to campaign
// templates.
type Variables struct {
	FirstName      string
	LastName       string
	FullName       string
	Email          string
	EventTitle     string
	EventDate      string
	EventTime      string
	JoinURL        string
	ReplayURL      string
	StreamerName   string
	CompanyName    string
	UnsubscribeURL string
}

func NewVariables(reg *models.Registration, event *models.Event, streamer *models.Streamer, loc *time.Location, unsubscribeBaseURL string) Variables {
	start := event.StartTime.In(loc)
	v := Variables{
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		FullName:     reg.FullName(),
		Email:        reg.Email,
		EventTitle:   event.Title,
		EventDate:    start.Format("Monday, January 2, 2006"),
		EventTime:    start.Format("3:04 PM MST"),
		JoinURL:      event.JoinURL,
		ReplayURL:    event.ReplayURL,
		StreamerName: streamer.Name,
		CompanyName:  streamer.CompanyName,
	}
	if unsubscribeBaseURL != "" {
		v.UnsubscribeURL = unsubscribeBaseURL + "?registration=" + url.QueryEscape(reg.ID)
	}
	return v
}

func (v Variables) Lookup(name string) (string, bool) {
	switch name {
	case "first_name":
		return v.FirstName, true
	case "last_name":
		return v.LastName, true
	case "full_name":
		return v.FullName, true
	case "email":
		return v.Email, true
	case "event_title":
		return v.EventTitle, true
	case "event_date":
		return v.EventDate, true
	case "event_time":
		return v.EventTime, true
	case "join_url":
		return v.JoinURL, true
	case "replay_url":
		return v.ReplayURL, true
	case "streamer_name":
		return v.StreamerName, true
	case "company_name":
		return v.CompanyName, true
	case "unsubscribe_url":
		return v.UnsubscribeURL, true
	}
	return "", false
}

// Render replaces every {{name}} with its value. Unknown names and
// unterminated braces are copied through unchanged.
func Render(tpl string, vars Variables) string {
	var b strings.Builder
	b.Grow(len(tpl))

	rest := tpl
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		closeIdx := strings.Index(rest[open+2:], "}}")
		if closeIdx < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := open + 2 + closeIdx + 2

		name := strings.TrimSpace(rest[open+2 : end-2])
		value, ok := vars.Lookup(name)
		if !ok {
			// Keep the braces and rescan after them; a real placeholder
			// may start inside this candidate.
			b.WriteString(rest[:open+2])
			rest = rest[open+2:]
			continue
		}
		b.WriteString(rest[:open])
		b.WriteString(value)
		rest = rest[end:]
	}
}
