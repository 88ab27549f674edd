package createpaymentintent

import "stream-monetization-workers/internal/models"

type Input struct {
	RequestID         string                `json:"requestId,omitempty"`
	StreamID          string                `json:"streamId" validate:"required"`
	ViewerID          string                `json:"viewerId,omitempty"`
	RegistrationID    string                `json:"registrationId,omitempty"`
	ProductName       string                `json:"productName" validate:"required"`
	Amount            int64                 `json:"amount" validate:"gt=0"`
	Currency          string                `json:"currency,omitempty"`
	Quantity          int                   `json:"quantity,omitempty" validate:"gte=0"`
	ConversionType    models.ConversionType `json:"conversionType,omitempty"`
	ConversionTrigger string                `json:"conversionTrigger,omitempty"`
	SuggestionID      string                `json:"suggestionId,omitempty"`
	CustomerEmail     string                `json:"customerEmail" validate:"required,email"`
	CustomerName      string                `json:"customerName,omitempty"`
	CustomerPhone     string                `json:"customerPhone,omitempty"`
}

type Output struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	ConversionID    string `json:"conversionId"`
}
