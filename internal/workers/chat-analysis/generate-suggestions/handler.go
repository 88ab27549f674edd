package generatesuggestions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stream-monetization-workers/internal/common/camunda"
	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/llm"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/common/metrics"
	"stream-monetization-workers/internal/common/observability"
	"stream-monetization-workers/internal/common/validation"
	"stream-monetization-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "generate-suggestions"

const systemPrompt = `You coach a live-stream host who is selling during the stream.
Given the analysis of one viewer chat message, propose actionable suggestions.
Respond with JSON: {"suggestions": [{
  "suggestion_type": "sales_opportunity" | "objection_handling" | "engagement_boost" | "product_recommendation",
  "suggestion_text": string,
  "confidence_score": number in [0,1],
  "priority_level": "low" | "medium" | "high" | "urgent",
  "reasoning": string,
  "context_data": object,
  "behavioral_triggers": [string],
  "recommended_actions": [string],
  "suggested_response": string,
  "suggested_offer": string,
  "suggested_registration_link": boolean
}]}
Return an empty list when no action is warranted.`

var suggestionsSchema = validation.MustCompile(`{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["suggestion_type", "suggestion_text"],
    "properties": {
      "suggestion_type": {"type": "string"},
      "suggestion_text": {"type": "string"},
      "confidence_score": {"type": "number"},
      "priority_level": {"type": "string"},
      "behavioral_triggers": {"type": "array", "items": {"type": "string"}},
      "recommended_actions": {"type": "array", "items": {"type": "string"}},
      "suggested_registration_link": {"type": "boolean"}
    }
  }
}`)

type SuggestionStore interface {
	SaveBatch(ctx context.Context, suggestions []models.Suggestion) error
}

type Handler struct {
	config    *Config
	completer llm.Completer
	store     SuggestionStore
	logger    logger.Logger
	now       func() time.Time
}

func NewHandler(config *Config, completer llm.Completer, store SuggestionStore, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		completer: completer,
		store:     store,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:       time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.RunJob(client, job, TaskType, h.config.Timeout, h.logger, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var output *Output
	err := observability.Trace(ctx, TaskType, "generate-suggestions", func(ctx context.Context) error {
		var err error
		output, err = h.execute(ctx, input)
		return err
	})
	return output, err
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Analysis == nil {
		return nil, apperrors.NewInvalidInputError("analysis is required")
	}

	source := models.SourceAI
	suggestions, err := h.generateWithAI(ctx, input)
	if err != nil {
		h.logger.Warn("AI suggestions unavailable, using rules", map[string]interface{}{
			"messageId": input.MessageID,
			"error":     err.Error(),
		})
		source = models.SourceHeuristic
		suggestions = FallbackSuggestions(input.Message, input.Analysis, input.ViewerContext)
	}

	now := h.now().UTC()
	for i := range suggestions {
		s := &suggestions[i]
		s.ID = uuid.New().String()
		s.StreamID = input.StreamID
		s.ViewerID = input.ViewerID
		s.MessageID = input.MessageID
		s.Status = models.SuggestionPending
		s.CreatedAt = now
		metrics.SuggestionsGenerated.WithLabelValues(string(s.SuggestionType), string(source)).Inc()
	}

	if len(suggestions) > 0 && input.StreamID != "" {
		apperrors.BestEffort(ctx, h.logger, "save-suggestions", func(ctx context.Context) error {
			return h.store.SaveBatch(ctx, suggestions)
		})
	}

	h.logger.Info("suggestions generated", map[string]interface{}{
		"messageId": input.MessageID,
		"count":     len(suggestions),
		"source":    source,
	})

	return &Output{Suggestions: suggestions, Count: len(suggestions), Source: source}, nil
}

func (h *Handler) generateWithAI(ctx context.Context, input *Input) ([]models.Suggestion, error) {
	if h.completer == nil {
		return nil, errors.New("no completion provider configured")
	}

	analysisJSON, err := json.Marshal(input.Analysis)
	if err != nil {
		return nil, err
	}
	user := fmt.Sprintf("Message: %q\nAnalysis: %s", input.Message, analysisJSON)
	if input.ViewerContext != nil {
		viewerJSON, err := json.Marshal(input.ViewerContext)
		if err != nil {
			return nil, err
		}
		user += fmt.Sprintf("\nViewer: %s", viewerJSON)
	}

	raw, err := h.completer.Complete(ctx, llm.Request{System: systemPrompt, User: user, JSONObject: true})
	if err != nil {
		return nil, err
	}
	return ParseSuggestions(raw)
}

// ParseSuggestions accepts a bare JSON array or an object wrapping it under
// "suggestions", optionally inside a code fence.
func ParseSuggestions(raw string) ([]models.Suggestion, error) {
	doc, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var items json.RawMessage = []byte(doc)
	if doc[0] == '{' {
		var wrapper struct {
			Suggestions json.RawMessage `json:"suggestions"`
		}
		if err := json.Unmarshal([]byte(doc), &wrapper); err != nil {
			return nil, fmt.Errorf("decode suggestions: %w", err)
		}
		if len(wrapper.Suggestions) == 0 {
			return nil, errors.New("missing suggestions field")
		}
		items = wrapper.Suggestions
	}

	if err := suggestionsSchema.Check(items); err != nil {
		return nil, err
	}

	var suggestions []models.Suggestion
	if err := json.Unmarshal(items, &suggestions); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	return normalize(suggestions), nil
}
