package confirmpayment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stream-monetization-workers/internal/common/aws"
	"stream-monetization-workers/internal/common/camunda"
	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/events"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/common/metrics"
	"stream-monetization-workers/internal/common/observability"
	"stream-monetization-workers/internal/common/payments"
	"stream-monetization-workers/internal/common/zoho"
	"stream-monetization-workers/internal/models"
	"stream-monetization-workers/internal/repository"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "confirm-payment"

type ConversionStore interface {
	GetByID(ctx context.Context, id string) (*models.ConversionEvent, error)
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.ConversionEvent, error)
	Settle(ctx context.Context, id string, status models.PaymentStatus) (bool, error)
	CreateInvoice(ctx context.Context, inv *models.Invoice) error
	StampInvoice(ctx context.Context, id, invoiceNumber, invoiceURL string) error
	IncrementStream(ctx context.Context, conversionID, streamID string, amount int64) error
}

// ConversionMarker records a realized conversion value against a viewer,
// registration or suggestion.
type ConversionMarker interface {
	MarkConverted(ctx context.Context, id string, value int64) error
}

type SuggestionAttributor interface {
	MarkLedToConversion(ctx context.Context, id string, value int64) error
}

type DocumentStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type EmailSender interface {
	Send(ctx context.Context, msg aws.EmailMessage) (string, error)
}

type CRM interface {
	UpsertContact(ctx context.Context, contact *zoho.Contact) (string, error)
}

// HandlerOptions wires the handler. Documents, Email and CRM are optional;
// their pipeline steps are skipped when nil.
type HandlerOptions struct {
	Config        *Config
	Gateway       payments.Gateway
	Conversions   ConversionStore
	Viewers       ConversionMarker
	Registrations ConversionMarker
	Suggestions   SuggestionAttributor
	Documents     DocumentStore
	Email         EmailSender
	Publisher     events.Publisher
	CRM           CRM
	Logger        logger.Logger
}

type Handler struct {
	config        *Config
	gateway       payments.Gateway
	conversions   ConversionStore
	viewers       ConversionMarker
	registrations ConversionMarker
	suggestions   SuggestionAttributor
	documents     DocumentStore
	email         EmailSender
	publisher     events.Publisher
	crm           CRM
	logger        logger.Logger
	now           func() time.Time
	newID         func() string
}

func NewHandler(opts HandlerOptions) *Handler {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Handler{
		config:        opts.Config,
		gateway:       opts.Gateway,
		conversions:   opts.Conversions,
		viewers:       opts.Viewers,
		registrations: opts.Registrations,
		suggestions:   opts.Suggestions,
		documents:     opts.Documents,
		email:         opts.Email,
		publisher:     publisher,
		crm:           opts.CRM,
		logger:        opts.Logger.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.RunJob(client, job, TaskType, h.config.Timeout, h.logger, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var output *Output
	err := observability.Trace(ctx, TaskType, "confirm-payment", func(ctx context.Context) error {
		var err error
		output, err = h.execute(ctx, input)
		return err
	}, attribute.String("paymentIntentId", input.PaymentIntentID))
	return output, err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.PaymentIntentID == "" {
		return nil, apperrors.NewInvalidInputError("paymentIntentId is required")
	}

	conversion, err := h.conversions.GetByPaymentIntentID(ctx, input.PaymentIntentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewConversionNotFoundError("payment intent " + input.PaymentIntentID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("load conversion", err)
	}
	if conversion.PaymentStatus != models.PaymentPending {
		return &Output{Conversion: conversion, AlreadySettled: true}, nil
	}

	intent, err := h.gateway.GetPaymentIntent(ctx, input.PaymentIntentID)
	if err != nil {
		return nil, apperrors.NewPaymentProviderError("retrieve payment intent", err)
	}

	status := models.PaymentFailed
	if intent.Succeeded() {
		status = models.PaymentCompleted
	}

	settled, err := h.conversions.Settle(ctx, conversion.ID, status)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("settle conversion", err)
	}
	if !settled {
		// A concurrent confirmation won; report what it stored.
		stored, err := h.conversions.GetByID(ctx, conversion.ID)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("reload conversion", err)
		}
		return &Output{Conversion: stored, AlreadySettled: true}, nil
	}

	conversion.PaymentStatus = status
	conversion.UpdatedAt = h.now().UTC()
	metrics.Conversions.WithLabelValues(string(status)).Inc()

	if status == models.PaymentFailed {
		h.logger.Warn("payment not successful", map[string]interface{}{
			"conversionId": conversion.ID,
			"intentStatus": intent.Status,
		})
		return &Output{Conversion: conversion}, nil
	}

	metrics.ConversionRevenue.WithLabelValues(conversion.Currency).Add(float64(conversion.Amount))
	h.runPostSuccess(ctx, conversion)

	h.logger.Info("payment confirmed", map[string]interface{}{
		"conversionId":  conversion.ID,
		"amount":        conversion.Amount,
		"currency":      conversion.Currency,
		"invoiceNumber": conversion.InvoiceNumber,
		"aiAttributed":  conversion.IsAIAttributed(),
	})
	return &Output{Conversion: conversion}, nil
}

// runPostSuccess runs every follow-up step independently. None of them can
// unwind the completed status.
func (h *Handler) runPostSuccess(ctx context.Context, c *models.ConversionEvent) {
	var invoice *models.Invoice
	h.step(ctx, "generate-invoice", func(ctx context.Context) error {
		var err error
		invoice, err = h.issueInvoice(ctx, c)
		return err
	})

	if h.email != nil && c.CustomerDetails.Email != "" {
		h.step(ctx, "send-confirmation-email", func(ctx context.Context) error {
			_, err := h.email.Send(ctx, confirmationEmail(c, invoice, h.config.InvoiceFromEmail, h.config.InvoiceIssuerName))
			return err
		})
	}

	h.step(ctx, "increment-stream-aggregates", func(ctx context.Context) error {
		return h.conversions.IncrementStream(ctx, c.ID, c.StreamID, c.Amount)
	})

	if c.ViewerID != "" && h.viewers != nil {
		h.step(ctx, "mark-viewer-converted", func(ctx context.Context) error {
			return h.viewers.MarkConverted(ctx, c.ViewerID, c.Amount)
		})
	}

	if c.RegistrationID != "" && h.registrations != nil {
		h.step(ctx, "mark-registration-converted", func(ctx context.Context) error {
			return h.registrations.MarkConverted(ctx, c.RegistrationID, c.Amount)
		})
	}

	if c.AISuggestionID != "" && h.suggestions != nil {
		h.step(ctx, "attribute-suggestion", func(ctx context.Context) error {
			return h.suggestions.MarkLedToConversion(ctx, c.AISuggestionID, c.Amount)
		})
	}

	h.step(ctx, "publish-conversion-completed", func(ctx context.Context) error {
		return h.publisher.Publish(ctx, events.TypeConversionCompleted, c.StreamID, map[string]interface{}{
			"conversionId":        c.ID,
			"streamId":            c.StreamID,
			"viewerId":            c.ViewerID,
			"amount":              c.Amount,
			"currency":            c.Currency,
			"aiSuggestionId":      c.AISuggestionID,
			"aiContributionScore": c.AIContributionScore,
			"invoiceNumber":       c.InvoiceNumber,
		})
	})

	if h.crm != nil && c.CustomerDetails.Email != "" {
		h.step(ctx, "crm-followup", func(ctx context.Context) error {
			_, err := h.crm.UpsertContact(ctx, crmContact(c))
			return err
		})
	}
}

func (h *Handler) step(ctx context.Context, name string, fn func(ctx context.Context) error) {
	apperrors.BestEffort(ctx, h.logger, name, func(ctx context.Context) error {
		if h.config.StepTimeout <= 0 {
			return fn(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, h.config.StepTimeout)
		defer cancel()
		return fn(ctx)
	})
}

func (h *Handler) issueInvoice(ctx context.Context, c *models.ConversionEvent) (*models.Invoice, error) {
	inv := BuildInvoice(c, h.config.TaxRate, h.newID(), h.now())

	if h.documents != nil {
		pdf, err := RenderInvoicePDF(inv, h.config.InvoiceIssuerName, h.config.TaxRate)
		if err != nil {
			return nil, err
		}
		url, err := h.documents.Put(ctx, "invoices/"+inv.InvoiceNumber+".pdf", "application/pdf", pdf)
		if err != nil {
			return nil, fmt.Errorf("upload invoice pdf: %w", err)
		}
		inv.PDFURL = url
	}

	if err := h.conversions.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("persist invoice: %w", err)
	}
	if err := h.conversions.StampInvoice(ctx, c.ID, inv.InvoiceNumber, inv.PDFURL); err != nil {
		return nil, fmt.Errorf("stamp conversion: %w", err)
	}
	c.InvoiceNumber = inv.InvoiceNumber
	c.InvoiceURL = inv.PDFURL
	return inv, nil
}

func confirmationEmail(c *models.ConversionEvent, inv *models.Invoice, from, issuer string) aws.EmailMessage {
	greeting := "Hi"
	if c.CustomerDetails.Name != "" {
		greeting = "Hi " + c.CustomerDetails.Name
	}
	text := fmt.Sprintf("%s,\n\nThanks for purchasing %s. We received your payment of %s.\n",
		greeting, c.ProductName, FormatAmount(c.Amount, c.Currency))
	if inv != nil {
		text += fmt.Sprintf("\nInvoice %s, total %s.\n", inv.InvoiceNumber, FormatAmount(inv.Total, inv.Currency))
		if inv.PDFURL != "" {
			text += "Download it here: " + inv.PDFURL + "\n"
		}
	}
	text += "\n" + issuer + "\n"

	return aws.EmailMessage{
		From:    from,
		To:      c.CustomerDetails.Email,
		Subject: "Your purchase: " + c.ProductName,
		Text:    text,
	}
}

func crmContact(c *models.ConversionEvent) *zoho.Contact {
	first, last := splitName(c.CustomerDetails.Name)
	return &zoho.Contact{
		Email:       c.CustomerDetails.Email,
		FirstName:   first,
		LastName:    last,
		Phone:       c.CustomerDetails.Phone,
		Source:      "Live Stream",
		Description: fmt.Sprintf("Purchased %s (%s) on stream %s", c.ProductName, FormatAmount(c.Amount, c.Currency), c.StreamID),
	}
}

func splitName(full string) (first, last string) {
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == ' ' {
			return full[:i], full[i+1:]
		}
	}
	return "", full
}
