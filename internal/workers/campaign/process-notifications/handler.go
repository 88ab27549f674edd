package processnotifications

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"stream-monetization-workers/internal/common/aws"
	"stream-monetization-workers/internal/common/camunda"
	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/common/metrics"
	"stream-monetization-workers/internal/common/observability"
	"stream-monetization-workers/internal/models"
	"stream-monetization-workers/internal/repository"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const TaskType = "process-pending-notifications"

type SendStore interface {
	ClaimDue(ctx context.Context, now time.Time, limit int, claimToken string, claimUntil time.Time) ([]models.NotificationSend, error)
	MarkSent(ctx context.Context, id, claimToken, providerMessageID string, attempts int, sentAt time.Time) error
	MarkRetry(ctx context.Context, id, claimToken string, attempts int, nextRetryAt time.Time, errMsg string) error
	MarkFailed(ctx context.Context, id, claimToken string, attempts int, errMsg string) error
}

type EmailSender interface {
	Send(ctx context.Context, msg aws.EmailMessage) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, from, to, body string) (string, error)
}

type HandlerOptions struct {
	Config *Config
	Store  SendStore
	Email  EmailSender
	SMS    SMSSender
	Logger logger.Logger
}

type Handler struct {
	config *Config
	store  SendStore
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
	now    func() time.Time
}

type outcome string

const (
	outcomeSent    outcome = "sent"
	outcomeRetried outcome = "retried"
	outcomeFailed  outcome = "failed"
	outcomeLost    outcome = "claim_lost"
)

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{
		config: opts.Config,
		store:  opts.Store,
		email:  opts.Email,
		sms:    opts.SMS,
		logger: opts.Logger.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.RunJob(client, job, TaskType, h.config.Timeout, h.logger, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var output *Output
	err := observability.Trace(ctx, TaskType, "process-batch", func(ctx context.Context) error {
		var err error
		output, err = h.execute(ctx, input)
		return err
	}, attribute.Int("batchSize", h.batchSize(input)))
	return output, err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	now := h.now()
	token := uuid.NewString()

	sends, err := h.store.ClaimDue(ctx, now, h.batchSize(input), token, now.Add(h.config.ClaimLease))
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("claim due sends", err)
	}

	out := &Output{Claimed: len(sends)}
	for i := range sends {
		if ctx.Err() != nil {
			h.logger.Warn("batch interrupted, remaining claims expire with the lease", map[string]interface{}{
				"remaining": len(sends) - i,
			})
			break
		}

		// Every row shares one lease, so the rest of the batch is out of time too.
		if h.leaseExpiring(&sends[i]) {
			h.logger.Warn("claim lease ran out, leaving remaining sends for the next poll", map[string]interface{}{
				"remaining":    len(sends) - i,
				"claimedUntil": sends[i].ClaimedUntil,
			})
			break
		}

		result := h.process(ctx, &sends[i], token)
		metrics.NotificationDeliveries.WithLabelValues(string(sends[i].SendType), string(result)).Inc()
		switch result {
		case outcomeSent:
			out.Sent++
		case outcomeRetried:
			out.Retried++
		case outcomeFailed:
			out.Failed++
		}
	}

	if out.Claimed > 0 {
		h.logger.Info("notification batch processed", map[string]interface{}{
			"claimed": out.Claimed,
			"sent":    out.Sent,
			"retried": out.Retried,
			"failed":  out.Failed,
		})
	}
	return out, nil
}

func (h *Handler) process(ctx context.Context, send *models.NotificationSend, token string) outcome {
	attempts := send.Attempts + 1
	messageID, sendErr := h.dispatch(ctx, send)

	var (
		result  outcome
		markErr error
	)
	switch {
	case sendErr == nil:
		result = outcomeSent
		markErr = h.store.MarkSent(ctx, send.ID, token, messageID, attempts, h.now().UTC())
	case attempts >= h.maxAttempts(send):
		result = outcomeFailed
		markErr = h.store.MarkFailed(ctx, send.ID, token, attempts, sendErr.Error())
	default:
		result = outcomeRetried
		markErr = h.store.MarkRetry(ctx, send.ID, token, attempts, NextRetryAt(h.now(), attempts).UTC(), sendErr.Error())
	}

	fields := map[string]interface{}{
		"sendId":   send.ID,
		"channel":  send.SendType,
		"attempts": attempts,
		"outcome":  result,
	}
	if sendErr != nil {
		fields["error"] = sendErr.Error()
	}

	if errors.Is(markErr, repository.ErrClaimLost) {
		h.logger.Warn("claim lost before status write", fields)
		return outcomeLost
	}
	if markErr != nil {
		fields["markError"] = markErr.Error()
		h.logger.Error("failed to record send outcome", fields)
		return result
	}

	if sendErr != nil {
		h.logger.Warn("notification send failed", fields)
	} else {
		h.logger.Debug("notification sent", fields)
	}
	return result
}

func (h *Handler) dispatch(ctx context.Context, send *models.NotificationSend) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.SendTimeout)
	defer cancel()

	switch send.SendType {
	case models.ChannelEmail:
		if h.email == nil {
			return "", fmt.Errorf("email transport not configured")
		}
		return h.email.Send(ctx, aws.EmailMessage{
			To:      send.RecipientAddress,
			Subject: send.Subject,
			Text:    send.ContentText,
			HTML:    send.ContentHTML,
		})
	case models.ChannelSMS:
		if h.sms == nil {
			return "", fmt.Errorf("sms transport not configured")
		}
		return h.sms.SendSMS(ctx, "", send.RecipientAddress, send.ContentText)
	}
	return "", fmt.Errorf("unsupported channel %q", send.SendType)
}

// batchSize lets callers shrink the batch but never grow it past the
// configured size.
func (h *Handler) batchSize(input *Input) int {
	limit := h.config.BatchSize
	if limit <= 0 || limit > MaxBatchSize {
		limit = MaxBatchSize
	}
	if input != nil && input.BatchSize > 0 && input.BatchSize < limit {
		return input.BatchSize
	}
	return limit
}

// leaseExpiring reports whether the claim could lapse while the send is in
// flight, at which point another poller may pick the row up again.
func (h *Handler) leaseExpiring(send *models.NotificationSend) bool {
	if send.ClaimedUntil == nil {
		return false
	}
	return !h.now().Add(h.config.SendTimeout).Before(*send.ClaimedUntil)
}

func (h *Handler) maxAttempts(send *models.NotificationSend) int {
	if send.MaxAttempts > 0 {
		return send.MaxAttempts
	}
	return h.config.MaxAttempts
}

// NextRetryAt backs off 2^attempts minutes from now.
func NextRetryAt(now time.Time, attempts int) time.Time {
	return now.Add(time.Duration(math.Pow(2, float64(attempts))) * time.Minute)
}
