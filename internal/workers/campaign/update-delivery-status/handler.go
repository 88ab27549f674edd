package updatedeliverystatus

import (
	"context"
	"errors"
	"time"

	"stream-monetization-workers/internal/common/camunda"
	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/common/metrics"
	"stream-monetization-workers/internal/common/observability"
	"stream-monetization-workers/internal/models"
	"stream-monetization-workers/internal/repository"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "update-delivery-status"

type SendStore interface {
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*models.NotificationSend, error)
	UpdateStatus(ctx context.Context, id string, from, to models.SendStatus, deliveredAt *time.Time) (bool, error)
}

type Handler struct {
	config *Config
	store  SendStore
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, store SendStore, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  store,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.RunJob(client, job, TaskType, h.config.Timeout, h.logger, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var output *Output
	err := observability.Trace(ctx, TaskType, "update-delivery-status", func(ctx context.Context) error {
		var err error
		output, err = h.execute(ctx, input)
		return err
	}, attribute.String("providerMessageId", input.ProviderMessageID), attribute.String("status", string(input.Status)))
	return output, err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ProviderMessageID == "" {
		return nil, apperrors.NewInvalidInputError("providerMessageId is required")
	}
	if !isCallbackStatus(input.Status) {
		return nil, apperrors.NewInvalidInputError("status must be one of delivered, bounced, spam, unsubscribed")
	}

	send, err := h.store.GetByProviderMessageID(ctx, input.ProviderMessageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewSendNotFoundError("provider message " + input.ProviderMessageID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("load send", err)
	}

	out := &Output{SendID: send.ID, PreviousStatus: send.Status, Status: input.Status}

	// Providers redeliver callbacks; a repeat of the current status is a no-op.
	if send.Status == input.Status {
		return out, nil
	}
	if !send.Status.CanTransitionTo(input.Status) {
		return nil, apperrors.NewInvalidStatusTransitionError(string(send.Status), string(input.Status))
	}

	var deliveredAt *time.Time
	if input.Status == models.SendDelivered {
		at := h.now().UTC()
		if input.OccurredAt != nil {
			at = input.OccurredAt.UTC()
		}
		deliveredAt = &at
	}

	changed, err := h.store.UpdateStatus(ctx, send.ID, send.Status, input.Status, deliveredAt)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("update send status", err)
	}
	if !changed {
		// Lost a race with another callback; the next redelivery re-evaluates.
		return nil, apperrors.NewQueryExecutionFailedError("update send status",
			errors.New("status changed concurrently"))
	}

	out.Changed = true
	metrics.NotificationDeliveries.WithLabelValues(string(send.SendType), string(input.Status)).Inc()
	h.logger.Info("delivery status updated", map[string]interface{}{
		"sendId": send.ID,
		"from":   send.Status,
		"to":     input.Status,
	})
	return out, nil
}

func isCallbackStatus(s models.SendStatus) bool {
	switch s {
	case models.SendDelivered, models.SendBounced, models.SendSpam, models.SendUnsubscribed:
		return true
	}
	return false
}
