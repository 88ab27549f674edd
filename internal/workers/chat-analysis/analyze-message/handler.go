package analyzemessage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stream-monetization-workers/internal/common/camunda"
	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/llm"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/common/metrics"
	"stream-monetization-workers/internal/common/observability"
	"stream-monetization-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskType    = "analyze-chat-message"
	cachePrefix = "chat:analysis:"
)

type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, messageID string, result *models.AnalysisResult) error
}

type AnalysisIndexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

type Handler struct {
	config    *Config
	completer llm.Completer
	store     AnalysisStore
	indexer   AnalysisIndexer
	cache     *redis.Client
	logger    logger.Logger
}

// NewHandler wires the scoring engine. indexer and cache may be nil.
func NewHandler(config *Config, completer llm.Completer, store AnalysisStore, indexer AnalysisIndexer, cache *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		completer: completer,
		store:     store,
		indexer:   indexer,
		cache:     cache,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.RunJob(client, job, TaskType, h.config.Timeout, h.logger, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var output *Output
	err := observability.Trace(ctx, TaskType, "analyze-message", func(ctx context.Context) error {
		var err error
		output, err = h.execute(ctx, input)
		return err
	}, attribute.String("messageId", input.MessageID))
	return output, err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	text := strings.TrimSpace(input.Message)
	if text == "" {
		return nil, apperrors.NewInvalidInputError("message text is required")
	}

	if cached := h.cached(ctx, input.MessageID); cached != nil {
		metrics.ChatAnalyses.WithLabelValues("cache").Inc()
		return &Output{MessageID: input.MessageID, Analysis: cached, Cached: true}, nil
	}

	sentAt := input.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	result, err := h.analyzeWithAI(ctx, text, sentAt)
	if err != nil {
		h.logger.Warn("AI analysis unavailable, using keyword heuristic", map[string]interface{}{
			"messageId": input.MessageID,
			"error":     err.Error(),
		})
		result = Heuristic(text)
	}
	result.Clamp()
	metrics.ChatAnalyses.WithLabelValues(string(result.Source)).Inc()

	if input.MessageID != "" {
		h.persist(ctx, input, result)
	}

	h.logger.Info("chat message analyzed", map[string]interface{}{
		"messageId":      input.MessageID,
		"source":         result.Source,
		"purchaseIntent": result.PurchaseIntentScore,
	})

	return &Output{MessageID: input.MessageID, Analysis: result}, nil
}

func (h *Handler) analyzeWithAI(ctx context.Context, text string, sentAt time.Time) (*models.AnalysisResult, error) {
	if h.completer == nil {
		return nil, errors.New("no completion provider configured")
	}

	raw, err := h.completer.Complete(ctx, llm.Request{
		System:     systemPrompt,
		User:       fmt.Sprintf("Message: %q\nSent at: %s", text, sentAt.Format(time.RFC3339)),
		JSONObject: true,
	})
	if err != nil {
		return nil, err
	}

	doc, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := analysisSchema.Check([]byte(doc)); err != nil {
		return nil, err
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	result.Source = models.SourceAI
	return &result, nil
}

func (h *Handler) cached(ctx context.Context, messageID string) *models.AnalysisResult {
	if h.cache == nil || messageID == "" {
		return nil
	}
	raw, err := h.cache.Get(ctx, cachePrefix+messageID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			h.logger.Warn("analysis cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil
	}
	var result models.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil
	}
	return &result
}

func (h *Handler) persist(ctx context.Context, input *Input, result *models.AnalysisResult) {
	apperrors.BestEffort(ctx, h.logger, "save-analysis", func(ctx context.Context) error {
		return h.store.SaveAnalysis(ctx, input.MessageID, result)
	})

	if h.indexer != nil {
		apperrors.BestEffort(ctx, h.logger, "index-analysis", func(ctx context.Context) error {
			return h.indexer.IndexDocument(ctx, h.config.AnalysisIndex, input.MessageID, map[string]interface{}{
				"messageId": input.MessageID,
				"streamId":  input.StreamID,
				"viewerId":  input.ViewerID,
				"message":   input.Message,
				"sentAt":    input.SentAt,
				"analysis":  result,
			})
		})
	}

	if h.cache != nil {
		apperrors.BestEffort(ctx, h.logger, "cache-analysis", func(ctx context.Context) error {
			payload, err := json.Marshal(result)
			if err != nil {
				return err
			}
			return h.cache.Set(ctx, cachePrefix+input.MessageID, payload, h.config.CacheTTL).Err()
		})
	}
}
