package openaichat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmate/autoreply/src/llm"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		Name:    "deepseek",
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "deepseek-chat",
	})
}

func successBody(text string) string {
	return `{
		"id": "chatcmpl-1",
		"model": "deepseek-chat",
		"choices": [{"message": {"role": "assistant", "content": "` + text + `"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`
}

func TestGenerateSuccess(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(successBody("你好，想了解哪只小家伙？")))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Generate(context.Background(), &llm.GenerateRequest{
		SystemPrompt: "你是领养顾问。",
		History: []llm.Message{
			{Role: llm.RoleUser, Content: "在吗"},
			{Role: llm.RoleAssistant, Content: "在的"},
		},
		UserMessage: "想领养一只猫",
		MaxTokens:   512,
		Temperature: 0.85,
	})
	require.NoError(t, err)

	assert.Equal(t, "你好，想了解哪只小家伙？", resp.Text)
	assert.Equal(t, "deepseek-chat", resp.Model)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	require.Len(t, gotReq.Messages, 4)
	assert.Equal(t, chatMessage{Role: "system", Content: "你是领养顾问。"}, gotReq.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "在吗"}, gotReq.Messages[1])
	assert.Equal(t, chatMessage{Role: "assistant", Content: "在的"}, gotReq.Messages[2])
	assert.Equal(t, chatMessage{Role: "user", Content: "想领养一只猫"}, gotReq.Messages[3])
	assert.InDelta(t, 0.85, gotReq.Temperature, 1e-9)
	assert.Equal(t, 512, gotReq.MaxTokens)
	assert.False(t, gotReq.Stream)
}

func TestGenerateNoAPIKey(t *testing.T) {
	client := NewClient(Config{Name: "deepseek", Model: "deepseek-chat"})

	_, err := client.Generate(context.Background(), &llm.GenerateRequest{UserMessage: "hi"})
	assert.ErrorIs(t, err, llm.ErrNoAPIKey)
}

func TestGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", "req-42")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Generate(context.Background(), &llm.GenerateRequest{UserMessage: "hi"})
	require.Error(t, err)

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "deepseek", apiErr.Provider)
	assert.Equal(t, "invalid_api_key", apiErr.Code)
	assert.Equal(t, "req-42", apiErr.RequestID)
	assert.True(t, apiErr.IsAuthError())
	assert.False(t, llm.IsRetryable(err))
}

func TestGenerateRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(successBody("ok")))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Generate(context.Background(), &llm.GenerateRequest{UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "bad request"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Generate(context.Background(), &llm.GenerateRequest{UserMessage: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeneratePersistentServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Generate(context.Background(), &llm.GenerateRequest{UserMessage: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(maxAttempts), calls.Load())
}

func TestGenerateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "chatcmpl-1", "model": "deepseek-chat", "choices": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Generate(context.Background(), &llm.GenerateRequest{UserMessage: "hi"})
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestGenerateBlankCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(successBody("   ")))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Generate(context.Background(), &llm.GenerateRequest{UserMessage: "hi"})
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}
