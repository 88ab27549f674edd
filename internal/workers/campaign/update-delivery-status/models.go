package updatedeliverystatus

import (
	"time"

	"stream-monetization-workers/internal/models"
)

type Input struct {
	ProviderMessageID string            `json:"providerMessageId" validate:"required"`
	Status            models.SendStatus `json:"status" validate:"required"`
	OccurredAt        *time.Time        `json:"occurredAt,omitempty"`
}

type Output struct {
	SendID         string            `json:"sendId"`
	PreviousStatus models.SendStatus `json:"previousStatus"`
	Status         models.SendStatus `json:"status"`
	Changed        bool              `json:"changed"`
}
