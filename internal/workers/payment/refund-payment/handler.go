package refundpayment

import (
	"context"
	"errors"

	"stream-monetization-workers/internal/common/camunda"
	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/events"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/common/metrics"
	"stream-monetization-workers/internal/common/observability"
	"stream-monetization-workers/internal/common/payments"
	"stream-monetization-workers/internal/models"
	"stream-monetization-workers/internal/repository"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "refund-payment"

type ConversionStore interface {
	GetByID(ctx context.Context, id string) (*models.ConversionEvent, error)
	Refund(ctx context.Context, id string) (bool, error)
}

type Handler struct {
	config      *Config
	gateway     payments.Gateway
	conversions ConversionStore
	publisher   events.Publisher
	logger      logger.Logger
}

func NewHandler(config *Config, gateway payments.Gateway, conversions ConversionStore, publisher events.Publisher, log logger.Logger) *Handler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Handler{
		config:      config,
		gateway:     gateway,
		conversions: conversions,
		publisher:   publisher,
		logger:      log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.RunJob(client, job, TaskType, h.config.Timeout, h.logger, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var output *Output
	err := observability.Trace(ctx, TaskType, "refund-payment", func(ctx context.Context) error {
		var err error
		output, err = h.execute(ctx, input)
		return err
	}, attribute.String("conversionId", input.ConversionID))
	return output, err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ConversionID == "" {
		return nil, apperrors.NewInvalidInputError("conversionId is required")
	}

	conversion, err := h.conversions.GetByID(ctx, input.ConversionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewConversionNotFoundError("conversion " + input.ConversionID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("load conversion", err)
	}
	if conversion.PaymentStatus != models.PaymentCompleted {
		return nil, apperrors.NewRefundNotAllowedError(conversion.ID, string(conversion.PaymentStatus))
	}

	refundID, err := h.gateway.CreateRefund(ctx, conversion.PaymentIntentID, input.Reason)
	if err != nil {
		return nil, apperrors.NewPaymentProviderError("create refund", err)
	}

	refunded, err := h.conversions.Refund(ctx, conversion.ID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("record refund", err)
	}
	if !refunded {
		// Another refund committed between the read and the write; its
		// transaction already reversed the aggregates.
		h.logger.Warn("conversion refunded concurrently", map[string]interface{}{
			"conversionId": conversion.ID,
			"refundId":     refundID,
		})
		return nil, apperrors.NewRefundNotAllowedError(conversion.ID, string(models.PaymentRefunded))
	}

	metrics.Conversions.WithLabelValues(string(models.PaymentRefunded)).Inc()

	apperrors.BestEffort(ctx, h.logger, "publish-conversion-refunded", func(ctx context.Context) error {
		return h.publisher.Publish(ctx, events.TypeConversionRefunded, conversion.StreamID, map[string]interface{}{
			"conversionId": conversion.ID,
			"streamId":     conversion.StreamID,
			"refundId":     refundID,
			"amount":       conversion.Amount,
			"currency":     conversion.Currency,
			"reason":       input.Reason,
		})
	})

	h.logger.Info("payment refunded", map[string]interface{}{
		"conversionId": conversion.ID,
		"refundId":     refundID,
		"amount":       conversion.Amount,
	})

	return &Output{
		ConversionID:      conversion.ID,
		RefundID:          refundID,
		Amount:            conversion.Amount,
		Currency:          conversion.Currency,
		PaymentStatus:     models.PaymentRefunded,
		FulfillmentStatus: models.FulfillmentCancelled,
	}, nil
}
