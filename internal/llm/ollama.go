package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/shaiso/llmflows/internal/domain"
)

const (
	defaultOllamaHost    = "http://localhost:11434"
	defaultOllamaModel   = "llama3.1"
	defaultOllamaTimeout = 2 * time.Minute
)

// OllamaConfig — настройки клиента Ollama.
type OllamaConfig struct {
	// Host — адрес сервера. По умолчанию http://localhost:11434.
	Host string

	// Model — имя модели.
	Model string

	// EmbeddingModel — модель для Embed. Пустая — Model.
	EmbeddingModel string

	// Temperature — температура генерации.
	Temperature float64

	// MaxTokens — ограничение длины ответа (num_predict). 0 — без ограничения.
	MaxTokens int

	// Retry — политика повторов. Нулевое значение — domain.DefaultRetryPolicy().
	Retry domain.RetryPolicy

	// HTTPClient — HTTP клиент. По умолчанию клиент с таймаутом 2 минуты.
	HTTPClient *http.Client

	// Logger — логгер. По умолчанию slog.Default().
	Logger *slog.Logger
}

// OllamaConfigFromEnv читает OLLAMA_HOST и OLLAMA_MODEL.
func OllamaConfigFromEnv() OllamaConfig {
	return OllamaConfig{
		Host:  os.Getenv("OLLAMA_HOST"),
		Model: os.Getenv("OLLAMA_MODEL"),
	}
}

// OllamaClient реализует Completer, ChatModel и Embedder поверх клиента
// github.com/ollama/ollama/api.
type OllamaClient struct {
	cfg    OllamaConfig
	client *api.Client
	logger *slog.Logger
}

// NewOllamaClient создаёт клиент. Ошибка возвращается только для
// некорректного Host.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.Host == "" {
		cfg.Host = defaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = cfg.Model
	}
	if cfg.Retry == (domain.RetryPolicy{}) {
		cfg.Retry = domain.DefaultRetryPolicy()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultOllamaTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse host %q: %w", cfg.Host, err)
	}

	return &OllamaClient{
		cfg:    cfg,
		client: api.NewClient(base, cfg.HTTPClient),
		logger: cfg.Logger,
	}, nil
}

// Chat реализует ChatModel через /api/chat.
func (c *OllamaClient) Chat(ctx context.Context, messages []domain.Message) (*Completion, error) {
	req := &api.ChatRequest{
		Model:    c.cfg.Model,
		Messages: toOllamaMessages(messages),
		Stream:   new(bool),
		Options:  c.options(),
	}

	resp, retries, err := Retry(ctx, c.cfg.Retry, c.logger, func(ctx context.Context) (*api.ChatResponse, error) {
		var out api.ChatResponse
		err := c.client.Chat(ctx, req, func(r api.ChatResponse) error {
			out = r
			return nil
		})
		if err != nil {
			return nil, classifyOllamaError(err)
		}
		return &out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if !resp.Done {
		return nil, fmt.Errorf("ollama chat: %w: call not done", ErrEmptyResponse)
	}

	return &Completion{
		Text:    resp.Message.Content,
		Retries: retries,
		Raw:     resp,
		Config:  c.modelConfig(),
	}, nil
}

// Complete реализует Completer через /api/generate.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (*Completion, error) {
	req := &api.GenerateRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Stream:  new(bool),
		Options: c.options(),
	}

	resp, retries, err := Retry(ctx, c.cfg.Retry, c.logger, func(ctx context.Context) (*api.GenerateResponse, error) {
		var out api.GenerateResponse
		err := c.client.Generate(ctx, req, func(r api.GenerateResponse) error {
			out = r
			return nil
		})
		if err != nil {
			return nil, classifyOllamaError(err)
		}
		return &out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	if !resp.Done {
		return nil, fmt.Errorf("ollama generate: %w: call not done", ErrEmptyResponse)
	}

	return &Completion{
		Text:    resp.Response,
		Retries: retries,
		Raw:     resp,
		Config:  c.modelConfig(),
	}, nil
}

// Embed реализует Embedder через /api/embed.
func (c *OllamaClient) Embed(ctx context.Context, texts []string) (*Embeddings, error) {
	req := &api.EmbedRequest{Model: c.cfg.EmbeddingModel, Input: texts}

	resp, retries, err := Retry(ctx, c.cfg.Retry, c.logger, func(ctx context.Context) (*api.EmbedResponse, error) {
		res, err := c.client.Embed(ctx, req)
		return res, classifyOllamaError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: %w: got %d vectors for %d texts", ErrEmptyResponse, len(resp.Embeddings), len(texts))
	}

	return &Embeddings{
		Vectors: resp.Embeddings,
		Retries: retries,
		Config:  ModelConfig{Model: c.cfg.EmbeddingModel},
	}, nil
}

// classifyOllamaError переводит api.StatusError в *StatusError и
// помечает повторяемые статусы как временные. Сетевые ошибки
// распознаёт IsTransient.
func classifyOllamaError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr api.StatusError
	if !errors.As(err, &apiErr) {
		return err
	}

	statusErr := &StatusError{StatusCode: apiErr.StatusCode, Body: strings.TrimSpace(apiErr.ErrorMessage)}
	if shouldRetryHTTPStatus(apiErr.StatusCode, retryableStatus) {
		return MarkTransient(statusErr)
	}
	return statusErr
}

func toOllamaMessages(messages []domain.Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, api.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func (c *OllamaClient) options() map[string]any {
	opts := map[string]any{"temperature": c.cfg.Temperature}
	if c.cfg.MaxTokens > 0 {
		opts["num_predict"] = c.cfg.MaxTokens
	}
	return opts
}

func (c *OllamaClient) modelConfig() ModelConfig {
	return ModelConfig{Model: c.cfg.Model, Temperature: c.cfg.Temperature, MaxTokens: c.cfg.MaxTokens}
}
