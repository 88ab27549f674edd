package resolvesuggestion

import (
	"context"
	"errors"
	"fmt"

	"stream-monetization-workers/internal/common/camunda"
	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/models"
	"stream-monetization-workers/internal/repository"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "resolve-suggestion"

type SuggestionStore interface {
	Get(ctx context.Context, id string) (*models.Suggestion, error)
	Resolve(ctx context.Context, id string, status models.SuggestionStatus) (bool, error)
}

type Handler struct {
	config *Config
	store  SuggestionStore
	logger logger.Logger
}

func NewHandler(config *Config, store SuggestionStore, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  store,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.RunJob(client, job, TaskType, h.config.Timeout, h.logger, h.Execute)
}

// Execute accepts or dismisses a pending suggestion. Only pending
// suggestions can be resolved.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.SuggestionID == "" {
		return nil, apperrors.NewInvalidInputError("suggestionId is required")
	}
	status, ok := input.Action.Status()
	if !ok {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unknown action %q", input.Action))
	}

	s, err := h.store.Get(ctx, input.SuggestionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewSuggestionNotFoundError(input.SuggestionID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get suggestion", err)
	}
	if s.Status != models.SuggestionPending {
		return nil, apperrors.NewBusinessRuleError("suggestion already resolved", string(s.Status))
	}

	changed, err := h.store.Resolve(ctx, s.ID, status)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("resolve suggestion", err)
	}
	if !changed {
		return nil, apperrors.NewBusinessRuleError("suggestion already resolved", "concurrent resolution")
	}

	h.logger.Info("suggestion resolved", map[string]interface{}{
		"suggestionId": s.ID,
		"status":       status,
	})

	return &Output{
		SuggestionID:   s.ID,
		Status:         status,
		SuggestionType: s.SuggestionType,
		StreamID:       s.StreamID,
		ViewerID:       s.ViewerID,
	}, nil
}
