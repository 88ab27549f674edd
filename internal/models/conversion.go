// internal/models/conversion.go
package models

import "time"

type ConversionType string

const (
	ConversionPurchase            ConversionType = "purchase"
	ConversionSignup              ConversionType = "signup"
	ConversionDemoRequest         ConversionType = "demo_request"
	ConversionConsultationBooking ConversionType = "consultation_booking"
)

func (t ConversionType) Valid() bool {
	switch t {
	case ConversionPurchase, ConversionSignup, ConversionDemoRequest, ConversionConsultationBooking:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "pending"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentShipped    FulfillmentStatus = "shipped"
	FulfillmentDelivered  FulfillmentStatus = "delivered"
	FulfillmentCancelled  FulfillmentStatus = "cancelled"
)

// AIAttributionThreshold is the contribution score at which a conversion
// counts as AI-attributed.
const AIAttributionThreshold = 0.5

type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ConversionEvent amounts are in minor currency units.
type ConversionEvent struct {
	ID                  string            `json:"id"`
	StreamID            string            `json:"stream_id"`
	ViewerID            string            `json:"viewer_id,omitempty"`
	RegistrationID      string            `json:"registration_id,omitempty"`
	ConversionType      ConversionType    `json:"conversion_type"`
	ProductName         string            `json:"product_name"`
	Amount              int64             `json:"amount"`
	Currency            string            `json:"currency"`
	Quantity            int               `json:"quantity"`
	PaymentIntentID     string            `json:"payment_intent_id"`
	CustomerID          string            `json:"customer_id"`
	PaymentStatus       PaymentStatus     `json:"payment_status"`
	InvoiceNumber       string            `json:"invoice_number,omitempty"`
	InvoiceURL          string            `json:"invoice_url,omitempty"`
	ConversionTrigger   string            `json:"conversion_trigger"`
	AISuggestionID      string            `json:"ai_suggestion_id,omitempty"`
	AIContributionScore float64           `json:"ai_contribution_score"`
	CustomerDetails     CustomerDetails   `json:"customer_details"`
	FulfillmentStatus   FulfillmentStatus `json:"fulfillment_status"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func (c *ConversionEvent) IsAIAttributed() bool {
	return c.AIContributionScore >= AIAttributionThreshold
}

type LineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
	Amount      int64  `json:"amount"`
}

type InvoiceStatus string

const (
	InvoiceIssued InvoiceStatus = "issued"
	InvoicePaid   InvoiceStatus = "paid"
)

type Invoice struct {
	ID            string        `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	ConversionID  string        `json:"conversion_id"`
	CustomerEmail string        `json:"customer_email"`
	CustomerName  string        `json:"customer_name,omitempty"`
	LineItems     []LineItem    `json:"line_items"`
	Subtotal      int64         `json:"subtotal"`
	Tax           int64         `json:"tax"`
	Total         int64         `json:"total"`
	Currency      string        `json:"currency"`
	PDFURL        string        `json:"pdf_url"`
	Status        InvoiceStatus `json:"status"`
	IssuedAt      time.Time     `json:"issued_at"`
}
