package resolvesuggestion

import (
	"context"
	"errors"
	"testing"

	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/models"
	"stream-monetization-workers/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	GetFunc     func(ctx context.Context, id string) (*models.Suggestion, error)
	ResolveFunc func(ctx context.Context, id string, status models.SuggestionStatus) (bool, error)
}

func (m *MockStore) Get(ctx context.Context, id string) (*models.Suggestion, error) {
	return m.GetFunc(ctx, id)
}

func (m *MockStore) Resolve(ctx context.Context, id string, status models.SuggestionStatus) (bool, error) {
	return m.ResolveFunc(ctx, id, status)
}

func suggestion(status models.SuggestionStatus) func(context.Context, string) (*models.Suggestion, error) {
	return func(_ context.Context, id string) (*models.Suggestion, error) {
		return &models.Suggestion{
			ID:             id,
			StreamID:       "stream-1",
			SuggestionType: models.SuggestionSalesOpportunity,
			Status:         status,
		}, nil
	}
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name       string
		input      *Input
		store      *MockStore
		wantStatus models.SuggestionStatus
		wantCode   apperrors.ErrorCode
	}{
		{
			name:  "accept pending",
			input: &Input{SuggestionID: "s-1", Action: ActionAccept},
			store: &MockStore{
				GetFunc: suggestion(models.SuggestionPending),
				ResolveFunc: func(_ context.Context, _ string, status models.SuggestionStatus) (bool, error) {
					return status == models.SuggestionAccepted, nil
				},
			},
			wantStatus: models.SuggestionAccepted,
		},
		{
			name:  "dismiss pending",
			input: &Input{SuggestionID: "s-1", Action: ActionDismiss},
			store: &MockStore{
				GetFunc:     suggestion(models.SuggestionPending),
				ResolveFunc: func(context.Context, string, models.SuggestionStatus) (bool, error) { return true, nil },
			},
			wantStatus: models.SuggestionDismissed,
		},
		{
			name:     "already resolved",
			input:    &Input{SuggestionID: "s-1", Action: ActionAccept},
			store:    &MockStore{GetFunc: suggestion(models.SuggestionDismissed)},
			wantCode: apperrors.ErrCodeBusinessRule,
		},
		{
			name:  "lost race",
			input: &Input{SuggestionID: "s-1", Action: ActionAccept},
			store: &MockStore{
				GetFunc:     suggestion(models.SuggestionPending),
				ResolveFunc: func(context.Context, string, models.SuggestionStatus) (bool, error) { return false, nil },
			},
			wantCode: apperrors.ErrCodeBusinessRule,
		},
		{
			name:  "missing suggestion",
			input: &Input{SuggestionID: "ghost", Action: ActionAccept},
			store: &MockStore{GetFunc: func(context.Context, string) (*models.Suggestion, error) {
				return nil, repository.ErrNotFound
			}},
			wantCode: apperrors.ErrCodeSuggestionNotFound,
		},
		{
			name:  "database down",
			input: &Input{SuggestionID: "s-1", Action: ActionAccept},
			store: &MockStore{GetFunc: func(context.Context, string) (*models.Suggestion, error) {
				return nil, errors.New("connection refused")
			}},
			wantCode: apperrors.ErrCodeQueryExecutionFailed,
		},
		{
			name:     "unknown action",
			input:    &Input{SuggestionID: "s-1", Action: "archive"},
			store:    &MockStore{},
			wantCode: apperrors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(LoadConfig(), tt.store, logger.NewNoOpLogger())
			out, err := h.Execute(context.Background(), tt.input)

			if tt.wantCode != "" {
				require.Error(t, err)
				stdErr, ok := apperrors.AsStandardError(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, stdErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, "stream-1", out.StreamID)
		})
	}
}
