// Package payments defines the card-payment capability and its Stripe
// implementation.
package payments

import "context"

type IntentStatus string

const (
	IntentSucceeded             IntentStatus = "succeeded"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentCanceled              IntentStatus = "canceled"
)

// Intent is the provider-neutral view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
	Amount       int64
	Currency     string
	CustomerID   string
}

func (i *Intent) Succeeded() bool {
	return i != nil && i.Status == IntentSucceeded
}

type CreateIntentParams struct {
	Amount         int64
	Currency       string
	CustomerID     string
	Description    string
	ReceiptEmail   string
	Metadata       map[string]string
	IdempotencyKey string
}

// Gateway is the payment capability consumed by the payment workers.
type Gateway interface {
	FindOrCreateCustomer(ctx context.Context, email, name string) (string, error)
	CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	GetPaymentIntent(ctx context.Context, id string) (*Intent, error)
	CreateRefund(ctx context.Context, paymentIntentID, reason string) (string, error)
}
