package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockChatAPI struct {
	CreateFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func (m *MockChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return m.CreateFunc(ctx, req)
}

func TestOpenAIClient_Complete(t *testing.T) {
	var captured openai.ChatCompletionRequest
	client := NewOpenAIClientWithAPI(&MockChatAPI{
		CreateFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			captured = req
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: `{"ok":true}`}}},
			}, nil
		},
	}, Config{Model: "gpt-4o-mini", Temperature: 0.2, Timeout: time.Second})

	out, err := client.Complete(context.Background(), Request{System: "sys", User: "usr", JSONObject: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, captured.Messages[0].Role)
	assert.Equal(t, "usr", captured.Messages[1].Content)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, captured.ResponseFormat.Type)
}

func TestOpenAIClient_CompleteErrors(t *testing.T) {
	tests := []struct {
		name string
		resp openai.ChatCompletionResponse
		err  error
		want error
	}{
		{name: "transport error", err: errors.New("connection reset")},
		{name: "no choices", want: ErrEmptyCompletion},
		{
			name: "empty content",
			resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{}}},
			want: ErrEmptyCompletion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewOpenAIClientWithAPI(&MockChatAPI{
				CreateFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
					return tt.resp, tt.err
				},
			}, Config{})

			_, err := client.Complete(context.Background(), Request{})
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain object", raw: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", raw: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "array with prose", raw: "Here you go: [{\"a\":1}] hope it helps", want: `[{"a":1}]`},
		{name: "no json", raw: "sorry, I cannot help", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
