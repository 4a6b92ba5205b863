package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shaiso/llmflows/internal/domain"
)

const chatCompletionJSON = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "Echoes"}, "finish_reason": "stop"}]
}`

func newTestOpenAIServer(t *testing.T, handler http.HandlerFunc) OpenAIConfig {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1/",
		Retry:   fastPolicy,
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// --- OpenAI Tests ---

func TestOpenAI_MissingAPIKey(t *testing.T) {
	_, err := NewOpenAIChat(OpenAIConfig{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	_, err = NewOpenAICompleter(OpenAIConfig{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	_, err = NewOpenAIEmbedder(OpenAIConfig{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestOpenAI_Chat(t *testing.T) {
	var body map[string]any
	cfg := newTestOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, chatCompletionJSON)
	})

	model, err := NewOpenAIChat(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := model.Chat(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "be brief"},
		{Role: domain.RoleUser, Content: "title?"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Text != "Echoes" {
		t.Errorf("expected 'Echoes', got %q", res.Text)
	}
	if body["model"] != DefaultOpenAIChatModel {
		t.Errorf("expected default chat model, got %v", body["model"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages, got %v", body["messages"])
	}

	if res.Config.Model != DefaultOpenAIChatModel || res.Config.Temperature != defaultTemperature || res.Config.MaxTokens != defaultMaxTokens {
		t.Errorf("unexpected model config: %+v", res.Config)
	}
	if res.CallData()["raw_outputs"] == nil {
		t.Error("raw outputs should be recorded")
	}
}

func TestOpenAI_ChatRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	cfg := newTestOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
			return
		}
		writeJSON(w, http.StatusOK, chatCompletionJSON)
	})

	model, err := NewOpenAIChat(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := model.Chat(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
	if res.Retries != 1 {
		t.Errorf("expected 1 retry, got %d", res.Retries)
	}
}

func TestOpenAI_ChatUnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int32
	cfg := newTestOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	})

	model, err := NewOpenAIChat(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = model.Chat(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTransient(err) {
		t.Error("401 must not be transient")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestOpenAI_Embed(t *testing.T) {
	cfg := newTestOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Порядок в ответе не совпадает с порядком входа
		writeJSON(w, http.StatusOK, `{
  "object": "list",
  "model": "text-embedding-3-small",
  "data": [
    {"object": "embedding", "index": 1, "embedding": [0, 1]},
    {"object": "embedding", "index": 0, "embedding": [1, 0]}
  ],
  "usage": {"prompt_tokens": 2, "total_tokens": 2}
}`)
	})

	embedder, err := NewOpenAIEmbedder(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Vectors[0][0] != 1 || res.Vectors[1][1] != 1 {
		t.Errorf("vectors should be ordered by index: %v", res.Vectors)
	}
	if res.Config.Model != DefaultOpenAIEmbeddingModel {
		t.Errorf("unexpected model %s", res.Config.Model)
	}
}
