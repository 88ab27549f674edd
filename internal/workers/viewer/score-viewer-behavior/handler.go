package scoreviewerbehavior

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

const TaskType = "score-viewer-behavior"

type ViewerStore interface {
	GetViewer(ctx context.Context, id string, recentSince time.Time) (*models.Viewer, error)
	SaveScore(ctx context.Context, id string, score float64, insights models.BehavioralInsights, recommendations []string) error
}

type Handler struct {
	config *Config
	store  ViewerStore
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, store ViewerStore, log logger.Logger) *Handler {
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
	err := observability.Trace(ctx, TaskType, "score-viewer", func(ctx context.Context) error {
		var err error
		output, err = h.execute(ctx, input)
		return err
	}, attribute.String("viewerId", input.ViewerID))
	return output, err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ViewerID == "" {
		return nil, apperrors.NewInvalidInputError("viewerId is required")
	}

	viewer, err := h.store.GetViewer(ctx, input.ViewerID, h.now().Add(-h.config.RecentWindow))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewViewerNotFoundError(input.ViewerID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("load viewer", err)
	}

	score, breakdown := Score(viewer)
	insights := Insights(viewer)
	recs := Recommendations(score, viewer)
	metrics.ViewerConversionScore.Observe(score)

	apperrors.BestEffort(ctx, h.logger, "save-viewer-score", func(ctx context.Context) error {
		return h.store.SaveScore(ctx, viewer.ID, score, insights, recs)
	})

	h.logger.Info("viewer scored", map[string]interface{}{
		"viewerId": viewer.ID,
		"score":    score,
		"pattern":  insights.EngagementPattern,
	})

	return &Output{
		ViewerID:           viewer.ID,
		ConversionScore:    score,
		BehavioralInsights: insights,
		Recommendations:    recs,
		ScoreBreakdown:     breakdown,
	}, nil
}
