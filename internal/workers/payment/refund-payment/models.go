package refundpayment

import "stream-monetization-workers/internal/models"

type Input struct {
	ConversionID string `json:"conversionId" validate:"required"`
	Reason       string `json:"reason,omitempty"`
}

type Output struct {
	ConversionID      string                   `json:"conversionId"`
	RefundID          string                   `json:"refundId"`
	Amount            int64                    `json:"amount"`
	Currency          string                   `json:"currency"`
	PaymentStatus     models.PaymentStatus     `json:"paymentStatus"`
	FulfillmentStatus models.FulfillmentStatus `json:"fulfillmentStatus"`
}
