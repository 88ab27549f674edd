package createpaymentintent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stream-monetization-workers/internal/common/camunda"
	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/common/metrics"
	"stream-monetization-workers/internal/common/observability"
	"stream-monetization-workers/internal/common/payments"
	"stream-monetization-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "create-payment-intent"

var validate = validator.New()

var conversionNamespace = uuid.MustParse("6f1c2a4e-3b7d-4c59-9a0e-8d2f61b5c7a3")

type ConversionStore interface {
	Create(ctx context.Context, c *models.ConversionEvent) error
}

type Handler struct {
	config      *Config
	gateway     payments.Gateway
	conversions ConversionStore
	logger      logger.Logger
	now         func() time.Time
	newID       func() string
}

func NewHandler(config *Config, gateway payments.Gateway, conversions ConversionStore, log logger.Logger) *Handler {
	return &Handler{
		config:      config,
		gateway:     gateway,
		conversions: conversions,
		logger:      log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Handle keys the request on the job so a retried job reuses the same
// conversion id and payment intent.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.RunJob(client, job, TaskType, h.config.Timeout, h.logger, func(ctx context.Context, input *Input) (*Output, error) {
		if input.RequestID == "" {
			input.RequestID = fmt.Sprintf("job-%d", job.Key)
		}
		return h.Execute(ctx, input)
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var output *Output
	err := observability.Trace(ctx, TaskType, "create-payment-intent", func(ctx context.Context) error {
		var err error
		output, err = h.execute(ctx, input)
		return err
	}, attribute.String("streamId", input.StreamID), attribute.Int64("amount", input.Amount))
	return output, err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.normalize(input); err != nil {
		return nil, err
	}

	customerID, err := h.gateway.FindOrCreateCustomer(ctx, input.CustomerEmail, input.CustomerName)
	if err != nil {
		return nil, apperrors.NewPaymentProviderError("find or create customer", err)
	}

	conversionID := h.conversionID(input)
	intent, err := h.gateway.CreatePaymentIntent(ctx, payments.CreateIntentParams{
		Amount:       input.Amount,
		Currency:     input.Currency,
		CustomerID:   customerID,
		Description:  fmt.Sprintf("%s x%d", input.ProductName, input.Quantity),
		ReceiptEmail: input.CustomerEmail,
		Metadata: map[string]string{
			"conversion_id":      conversionID,
			"product_name":       input.ProductName,
			"stream_id":          input.StreamID,
			"viewer_id":          input.ViewerID,
			"conversion_trigger": input.ConversionTrigger,
			"suggestion_id":      input.SuggestionID,
		},
		IdempotencyKey: "intent-" + conversionID,
	})
	if err != nil {
		return nil, apperrors.NewPaymentProviderError("create payment intent", err)
	}

	contribution := 0.0
	if input.SuggestionID != "" {
		contribution = h.config.AIContribution
	}

	now := h.now().UTC()
	conversion := &models.ConversionEvent{
		ID:                  conversionID,
		StreamID:            input.StreamID,
		ViewerID:            input.ViewerID,
		RegistrationID:      input.RegistrationID,
		ConversionType:      input.ConversionType,
		ProductName:         input.ProductName,
		Amount:              input.Amount,
		Currency:            input.Currency,
		Quantity:            input.Quantity,
		PaymentIntentID:     intent.ID,
		CustomerID:          customerID,
		PaymentStatus:       models.PaymentPending,
		ConversionTrigger:   input.ConversionTrigger,
		AISuggestionID:      input.SuggestionID,
		AIContributionScore: contribution,
		CustomerDetails: models.CustomerDetails{
			Email: input.CustomerEmail,
			Name:  input.CustomerName,
			Phone: input.CustomerPhone,
		},
		FulfillmentStatus: models.FulfillmentPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := h.conversions.Create(ctx, conversion); err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	metrics.Conversions.WithLabelValues(string(models.PaymentPending)).Inc()
	h.logger.Info("payment intent created", map[string]interface{}{
		"conversionId":    conversionID,
		"paymentIntentId": intent.ID,
		"amount":          input.Amount,
		"currency":        input.Currency,
		"aiAttributed":    conversion.IsAIAttributed(),
	})

	return &Output{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		ConversionID:    conversionID,
	}, nil
}

// normalize validates input and fills defaults in place.
func (h *Handler) normalize(input *Input) error {
	input.CustomerEmail = strings.TrimSpace(input.CustomerEmail)
	switch {
	case input.Amount <= 0:
		return apperrors.NewInvalidInputError("amount must be greater than zero")
	case input.CustomerEmail == "":
		return apperrors.NewInvalidInputError("customerEmail is required")
	case input.Quantity < 0:
		return apperrors.NewInvalidInputError("quantity must be at least 1")
	case input.StreamID == "":
		return apperrors.NewInvalidInputError("streamId is required")
	case input.ProductName == "":
		return apperrors.NewInvalidInputError("productName is required")
	}
	if err := validate.Var(input.CustomerEmail, "email"); err != nil {
		return apperrors.NewInvalidInputError("customerEmail is not a valid address")
	}
	if input.ConversionType != "" && !input.ConversionType.Valid() {
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown conversionType %q", input.ConversionType))
	}

	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Currency == "" {
		input.Currency = h.config.DefaultCurrency
	}
	input.Currency = strings.ToLower(input.Currency)
	if input.ConversionType == "" {
		input.ConversionType = models.ConversionPurchase
	}
	return nil
}

// conversionID is derived from the request id when there is one, so replays
// of the same request hit the same Stripe idempotency key and row.
func (h *Handler) conversionID(input *Input) string {
	if input.RequestID != "" {
		return uuid.NewSHA1(conversionNamespace, []byte(input.RequestID)).String()
	}
	return h.newID()
}
