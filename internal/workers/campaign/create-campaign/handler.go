package createcampaign

import (
	"context"
	"errors"
	"time"

	"stream-monetization-workers/internal/common/camunda"
	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/events"
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

const TaskType = "create-campaign"

type CampaignStore interface {
	GetTemplate(ctx context.Context, id string) (*models.NotificationTemplate, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetStreamer(ctx context.Context, id string) (*models.Streamer, error)
	CreateWithSends(ctx context.Context, c *models.Campaign, sends []models.NotificationSend) error
}

type RegistrationLister interface {
	ListByEvent(ctx context.Context, eventID string) ([]models.Registration, error)
}

type HandlerOptions struct {
	Config        *Config
	Campaigns     CampaignStore
	Registrations RegistrationLister
	Publisher     events.Publisher
	Logger        logger.Logger
}

type Handler struct {
	config        *Config
	campaigns     CampaignStore
	registrations RegistrationLister
	publisher     events.Publisher
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
		campaigns:     opts.Campaigns,
		registrations: opts.Registrations,
		publisher:     publisher,
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
	err := observability.Trace(ctx, TaskType, "create-campaign", func(ctx context.Context) error {
		var err error
		output, err = h.execute(ctx, input)
		return err
	}, attribute.String("eventId", input.EventID), attribute.String("templateId", input.TemplateID))
	return output, err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.EventID == "" || input.TemplateID == "" {
		return nil, apperrors.NewInvalidInputError("eventId and templateId are required")
	}

	tpl, err := h.campaigns.GetTemplate(ctx, input.TemplateID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewTemplateNotFoundError(input.TemplateID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("load template", err)
	}

	event, err := h.campaigns.GetEvent(ctx, input.EventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewEventNotFoundError(input.EventID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("load event", err)
	}

	streamerID := firstNonEmpty(input.StreamerID, tpl.StreamerID, event.StreamerID)
	streamer, err := h.loadStreamer(ctx, streamerID)
	if err != nil {
		return nil, err
	}

	regs, err := h.registrations.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list registrations", err)
	}

	campaign := &models.Campaign{
		ID:                  h.newID(),
		EventID:             event.ID,
		StreamID:            input.StreamID,
		TemplateID:          tpl.ID,
		StreamerID:          streamerID,
		Name:                firstNonEmpty(input.Name, tpl.Name+" - "+event.Title),
		TargetAudienceCount: AudienceCount(regs, tpl.AudienceSegments),
		Status:              models.CampaignActive,
		CreatedAt:           h.now().UTC(),
	}

	expansion := Expand(ExpandParams{
		CampaignID:         campaign.ID,
		Template:           tpl,
		Event:              event,
		Streamer:           streamer,
		Registrations:      regs,
		Now:                h.now(),
		Location:           h.location(event),
		UnsubscribeBaseURL: h.config.UnsubscribeBaseURL,
		MaxAttempts:        h.config.MaxAttempts,
		NewID:              h.newID,
	})
	for _, cond := range expansion.UnknownConditions {
		h.logger.Warn("ignoring unknown schedule condition", map[string]interface{}{
			"templateId": tpl.ID,
			"condition":  cond,
		})
	}

	if err := h.campaigns.CreateWithSends(ctx, campaign, expansion.Sends); err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	perChannel := map[models.Channel]int{}
	for _, s := range expansion.Sends {
		perChannel[s.SendType]++
	}
	for ch, n := range perChannel {
		metrics.NotificationsScheduled.WithLabelValues(string(ch)).Add(float64(n))
	}

	apperrors.BestEffort(ctx, h.logger, "publish-campaign-scheduled", func(ctx context.Context) error {
		return h.publisher.Publish(ctx, events.TypeCampaignScheduled, campaign.ID, map[string]interface{}{
			"campaignId":          campaign.ID,
			"eventId":             campaign.EventID,
			"streamId":            campaign.StreamID,
			"targetAudienceCount": campaign.TargetAudienceCount,
			"sendsCreated":        len(expansion.Sends),
		})
	})

	h.logger.Info("campaign scheduled", map[string]interface{}{
		"campaignId":     campaign.ID,
		"registrations":  len(regs),
		"audience":       campaign.TargetAudienceCount,
		"sends":          len(expansion.Sends),
		"skippedPastDue": expansion.SkippedPastDue,
	})

	return &Output{
		CampaignID:          campaign.ID,
		Status:              campaign.Status,
		TargetAudienceCount: campaign.TargetAudienceCount,
		SendsCreated:        len(expansion.Sends),
		SkippedPastDue:      expansion.SkippedPastDue,
		SkippedNoAddress:    expansion.SkippedNoAddress,
		SkippedCondition:    expansion.SkippedCondition,
		SkippedNoTemplate:   expansion.SkippedNoTemplate,
	}, nil
}

// loadStreamer returns an empty streamer when the row is missing; streamer
// data only feeds placeholders.
func (h *Handler) loadStreamer(ctx context.Context, id string) (*models.Streamer, error) {
	if id == "" {
		return &models.Streamer{}, nil
	}
	streamer, err := h.campaigns.GetStreamer(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		h.logger.Warn("streamer not found, rendering without streamer fields", map[string]interface{}{
			"streamerId": id,
		})
		return &models.Streamer{ID: id}, nil
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("load streamer", err)
	}
	return streamer, nil
}

func (h *Handler) location(event *models.Event) *time.Location {
	for _, name := range []string{event.Timezone, h.config.DefaultTimezone} {
		if name == "" {
			continue
		}
		loc, err := time.LoadLocation(name)
		if err == nil {
			return loc
		}
		h.logger.Warn("unknown timezone", map[string]interface{}{"timezone": name})
	}
	return time.UTC
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
