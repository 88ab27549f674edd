package confirmpayment

import "stream-monetization-workers/internal/models"

type Input struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
}

type Output struct {
	Conversion     *models.ConversionEvent `json:"conversion"`
	AlreadySettled bool                    `json:"alreadySettled"`
}
