package resolvesuggestion

import "stream-monetization-workers/internal/models"

type Action string

const (
	ActionAccept  Action = "accept"
	ActionDismiss Action = "dismiss"
)

func (a Action) Status() (models.SuggestionStatus, bool) {
	switch a {
	case ActionAccept:
		return models.SuggestionAccepted, true
	case ActionDismiss:
		return models.SuggestionDismissed, true
	}
	return "", false
}

type Input struct {
	SuggestionID string `json:"suggestionId" validate:"required"`
	Action       Action `json:"action" validate:"required,oneof=accept dismiss"`
}

type Output struct {
	SuggestionID   string                  `json:"suggestionId"`
	Status         models.SuggestionStatus `json:"status"`
	SuggestionType models.SuggestionType   `json:"suggestionType"`
	StreamID       string                  `json:"streamId"`
	ViewerID       string                  `json:"viewerId,omitempty"`
}
