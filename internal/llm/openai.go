package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/shaiso/llmflows/internal/domain"
)

// Модели по умолчанию.
const (
	DefaultOpenAICompletionModel = "gpt-3.5-turbo-instruct"
	DefaultOpenAIChatModel       = "gpt-4o-mini"
	DefaultOpenAIEmbeddingModel  = "text-embedding-3-small"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 500
)

// OpenAIConfig — настройки клиента OpenAI-совместимого API.
type OpenAIConfig struct {
	// APIKey — ключ API. Обязателен.
	APIKey string

	// BaseURL — адрес API. Пустой — официальный endpoint.
	BaseURL string

	// Model — имя модели. Пустое — модель по умолчанию для типа клиента.
	Model string

	// Temperature — температура генерации. 0 — defaultTemperature.
	Temperature float64

	// MaxTokens — ограничение длины ответа. 0 — defaultMaxTokens.
	MaxTokens int

	// Retry — политика повторов. Нулевое значение — domain.DefaultRetryPolicy().
	Retry domain.RetryPolicy

	// Timeout — таймаут одного HTTP запроса. 0 — без таймаута.
	Timeout time.Duration

	// Logger — логгер. По умолчанию slog.Default().
	Logger *slog.Logger

	// azure заменяет аутентификацию и адрес API (см. AzureConfig).
	azure []option.RequestOption
}

// OpenAIConfigFromEnv читает OPENAI_API_KEY, OPENAI_BASE_URL и OPENAI_MODEL.
func OpenAIConfigFromEnv() OpenAIConfig {
	return OpenAIConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:   os.Getenv("OPENAI_MODEL"),
	}
}

// withDefaults проверяет конфигурацию и заполняет пустые поля.
func (c OpenAIConfig) withDefaults(model string) (OpenAIConfig, error) {
	if c.APIKey == "" {
		return c, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Retry == (domain.RetryPolicy{}) {
		c.Retry = domain.DefaultRetryPolicy()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c, nil
}

// client создаёт клиент openai-go. Встроенные повторы SDK отключены:
// повторами управляет Retry.
func (c OpenAIConfig) client() openai.Client {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	switch {
	case len(c.azure) > 0:
		opts = append(opts, c.azure...)
	default:
		opts = append(opts, option.WithAPIKey(c.APIKey))
		if c.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(c.BaseURL))
		}
	}
	if c.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(c.Timeout))
	}
	return openai.NewClient(opts...)
}

func (c OpenAIConfig) modelConfig() ModelConfig {
	return ModelConfig{Model: c.Model, Temperature: c.Temperature, MaxTokens: c.MaxTokens}
}

// classifyOpenAIError помечает временные ошибки API.
func classifyOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if shouldRetryHTTPStatus(apiErr.StatusCode, retryableStatus) {
			return MarkTransient(err)
		}
		return err
	}

	return err
}

// OpenAICompleter — Completer поверх /completions.
type OpenAICompleter struct {
	client openai.Client
	cfg    OpenAIConfig
}

// NewOpenAICompleter создаёт completion клиент.
func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	cfg, err := cfg.withDefaults(DefaultOpenAICompletionModel)
	if err != nil {
		return nil, err
	}
	return &OpenAICompleter{client: cfg.client(), cfg: cfg}, nil
}

// Complete реализует Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (*Completion, error) {
	resp, retries, err := Retry(ctx, c.cfg.Retry, c.cfg.Logger, func(ctx context.Context) (*openai.Completion, error) {
		res, err := c.client.Completions.New(ctx, openai.CompletionNewParams{
			Model:       openai.CompletionNewParamsModel(c.cfg.Model),
			Prompt:      openai.CompletionNewParamsPromptUnion{OfString: openai.String(prompt)},
			MaxTokens:   openai.Int(int64(c.cfg.MaxTokens)),
			Temperature: openai.Float(c.cfg.Temperature),
		})
		return res, classifyOpenAIError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai completion: %w", ErrEmptyResponse)
	}

	return &Completion{
		Text:    resp.Choices[0].Text,
		Retries: retries,
		Raw:     json.RawMessage(resp.RawJSON()),
		Config:  c.cfg.modelConfig(),
	}, nil
}

// OpenAIChat — ChatModel поверх /chat/completions.
type OpenAIChat struct {
	client openai.Client
	cfg    OpenAIConfig
}

// NewOpenAIChat создаёт chat клиент.
func NewOpenAIChat(cfg OpenAIConfig) (*OpenAIChat, error) {
	cfg, err := cfg.withDefaults(DefaultOpenAIChatModel)
	if err != nil {
		return nil, err
	}
	return &OpenAIChat{client: cfg.client(), cfg: cfg}, nil
}

// Chat реализует ChatModel.
func (c *OpenAIChat) Chat(ctx context.Context, messages []domain.Message) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.Model),
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   openai.Int(int64(c.cfg.MaxTokens)),
		Temperature: openai.Float(c.cfg.Temperature),
	}

	resp, retries, err := Retry(ctx, c.cfg.Retry, c.cfg.Logger, func(ctx context.Context) (*openai.ChatCompletion, error) {
		res, err := c.client.Chat.Completions.New(ctx, params)
		return res, classifyOpenAIError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat: %w", ErrEmptyResponse)
	}

	return &Completion{
		Text:    resp.Choices[0].Message.Content,
		Retries: retries,
		Raw:     json.RawMessage(resp.RawJSON()),
		Config:  c.cfg.modelConfig(),
	}, nil
}

func toOpenAIMessages(messages []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// OpenAIEmbedder — Embedder поверх /embeddings.
type OpenAIEmbedder struct {
	client openai.Client
	cfg    OpenAIConfig
}

// NewOpenAIEmbedder создаёт embeddings клиент.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	cfg, err := cfg.withDefaults(DefaultOpenAIEmbeddingModel)
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{client: cfg.client(), cfg: cfg}, nil
}

// Embed реализует Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) (*Embeddings, error) {
	resp, retries, err := Retry(ctx, e.cfg.Retry, e.cfg.Logger, func(ctx context.Context) (*openai.CreateEmbeddingResponse, error) {
		res, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: openai.EmbeddingModel(e.cfg.Model),
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		})
		return res, classifyOpenAIError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: %w: got %d vectors for %d texts", ErrEmptyResponse, len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			return nil, fmt.Errorf("openai embeddings: unexpected index %d", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vectors[d.Index] = vec
	}

	return &Embeddings{
		Vectors: vectors,
		Retries: retries,
		Config:  ModelConfig{Model: e.cfg.Model},
	}, nil
}
