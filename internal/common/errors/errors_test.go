package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	warnings []map[string]interface{}
}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.warnings = append(l.warnings, fields)
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {}

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeQueryExecutionFailed, 3},
		{ErrCodePaymentProviderFailed, 3},
		{ErrCodeNotificationSendFailed, 3},
		{ErrCodeTimeout, 2},
		{ErrCodeViewerNotFound, 0},
		{ErrCodeTemplateNotFound, 0},
		{ErrCodeInvalidInput, 0},
		{ErrCodeRefundNotAllowed, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", GetErrorCategory(ErrCodeEventNotFound))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "PAYMENT", GetErrorCategory(ErrCodeRefundNotAllowed))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestConvertToBPMNError_NonRetryableHasNoRetries(t *testing.T) {
	stdErr := NewViewerNotFoundError("viewer-1")
	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "VIEWER_NOT_FOUND", bpmnErr.Code)
	assert.Equal(t, 0, bpmnErr.Retries)
	assert.False(t, bpmnErr.Retryable)
	assert.Equal(t, "VIEWER_NOT_FOUND", bpmnErr.ToErrorVariables()["originalErrorCode"])
}

func TestConvertToBPMNError_UnmappedCodeFallsBack(t *testing.T) {
	bpmnErr := ConvertToBPMNError(NewBusinessRuleError("nope", "details"))
	assert.Equal(t, string(ErrCodeBusinessRule), bpmnErr.Code)
}

func TestNormalize(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", NewEventNotFoundError("evt-1"))
	stdErr := Normalize(wrapped)
	assert.Equal(t, ErrCodeEventNotFound, stdErr.Code)

	plain := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
	assert.False(t, plain.Retryable)
}

func TestBestEffort(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		log := &recordingLogger{}
		ok := BestEffort(context.Background(), log, "save", func(ctx context.Context) error { return nil })
		assert.True(t, ok)
		assert.Empty(t, log.warnings)
	})

	t.Run("error is swallowed and logged", func(t *testing.T) {
		log := &recordingLogger{}
		ok := BestEffort(context.Background(), log, "save", func(ctx context.Context) error {
			return stderrors.New("db down")
		})
		assert.False(t, ok)
		require.Len(t, log.warnings, 1)
		assert.Equal(t, "save", log.warnings[0]["step"])
		assert.Equal(t, "db down", log.warnings[0]["error"])
	})

	t.Run("panic is recovered", func(t *testing.T) {
		log := &recordingLogger{}
		ok := BestEffort(context.Background(), log, "render", func(ctx context.Context) error {
			panic("nil font")
		})
		assert.False(t, ok)
		require.Len(t, log.warnings, 1)
		assert.Equal(t, "nil font", log.warnings[0]["panic"])
	})
}
