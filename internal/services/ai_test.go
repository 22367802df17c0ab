package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-sync/internal/models"
)

// newChatServer answers every chat completion with content
func newChatServer(t *testing.T, content string, requests *[]openai.ChatCompletionRequest) *AIService {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if requests != nil {
			*requests = append(*requests, req)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	svc := NewAIServiceWithConfig(cfg)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return svc
}

func TestAIService_GenerateTasksFromText(t *testing.T) {
	var requests []openai.ChatCompletionRequest
	svc := newChatServer(t, `[
		{"title": "Write report", "description": "Q2", "priority": "high", "estimated_effort": 2.5, "due_date": "2024-05-03T17:00:00Z"},
		{"title": "Call Alice", "description": "", "priority": "low", "estimated_effort": 0, "due_date": null}
	]`, &requests)

	tasks, err := svc.GenerateTasksFromText(context.Background(), "write the report by Friday, call Alice")
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, "Write report", tasks[0].Title)
	assert.Equal(t, models.PriorityHigh, tasks[0].Priority)
	assert.Equal(t, 2.5, tasks[0].EstimatedEffort)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, time.Date(2024, 5, 3, 17, 0, 0, 0, time.UTC), tasks[0].DueDate.UTC())
	assert.Nil(t, tasks[1].DueDate)

	require.Len(t, requests, 1)
	assert.Equal(t, openai.GPT4o, requests[0].Model)
	require.Len(t, requests[0].Messages, 1)
	assert.Contains(t, requests[0].Messages[0].Content, "2024-05-01 09:30:00")
	assert.Contains(t, requests[0].Messages[0].Content, "call Alice")
}

func TestAIService_StripsCodeFence(t *testing.T) {
	svc := newChatServer(t, "```json\n[{\"title\": \"Deploy\", \"priority\": \"urgent\"}]\n```", nil)

	tasks, err := svc.GenerateTasksFromText(context.Background(), "deploy now")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Deploy", tasks[0].Title)
	assert.Equal(t, models.PriorityUrgent, tasks[0].Priority)
}

func TestAIService_UnparseableResponse(t *testing.T) {
	svc := newChatServer(t, "I could not find any tasks.", nil)

	_, err := svc.GenerateTasksFromText(context.Background(), "hello")
	assert.ErrorContains(t, err, "failed to parse AI response")
}

func TestAIService_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit_error"}}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"

	_, err := NewAIServiceWithConfig(cfg).GenerateTasksFromText(context.Background(), "text")
	assert.ErrorContains(t, err, "OpenAI API error")
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "[]", stripCodeFence("  []  "))
	assert.Equal(t, "[]", stripCodeFence("```json\n[]\n```"))
	assert.Equal(t, "[1]", stripCodeFence("```\n[1]\n```"))
}
