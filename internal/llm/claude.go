package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/shaiso/llmflows/internal/domain"
)

// DefaultClaudeModel — модель Claude по умолчанию.
const DefaultClaudeModel = "claude-3-5-haiku-latest"

// statusOverloaded — ответ Anthropic API при перегрузке.
const statusOverloaded = 529

// ClaudeConfig — настройки клиента Anthropic Messages API.
type ClaudeConfig struct {
	// APIKey — ключ API. Обязателен.
	APIKey string

	// BaseURL — адрес API. Пустой — официальный endpoint.
	BaseURL string

	// Model — имя модели. Пустое — DefaultClaudeModel.
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
}

// ClaudeConfigFromEnv читает ANTHROPIC_API_KEY, ANTHROPIC_BASE_URL и CLAUDE_MODEL.
func ClaudeConfigFromEnv() ClaudeConfig {
	return ClaudeConfig{
		APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		Model:   os.Getenv("CLAUDE_MODEL"),
	}
}

// ClaudeChat — ChatModel поверх Anthropic Messages API.
//
// Системные сообщения истории передаются в поле system запроса,
// остальные идут в messages в исходном порядке.
type ClaudeChat struct {
	client anthropic.Client
	cfg    ClaudeConfig
}

// NewClaudeChat создаёт chat клиент Claude.
func NewClaudeChat(cfg ClaudeConfig) (*ClaudeChat, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("claude: %w", ErrMissingAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultClaudeModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Retry == (domain.RetryPolicy{}) {
		cfg.Retry = domain.DefaultRetryPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// Встроенные повторы SDK отключены: повторами управляет Retry
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &ClaudeChat{client: anthropic.NewClient(opts...), cfg: cfg}, nil
}

// Chat реализует ChatModel.
func (c *ClaudeChat) Chat(ctx context.Context, messages []domain.Message) (*Completion, error) {
	system, msgs := toClaudeMessages(messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   int64(c.cfg.MaxTokens),
		Messages:    msgs,
		Temperature: anthropic.Float(c.cfg.Temperature),
	}
	if len(system) > 0 {
		params.System = system
	}

	resp, retries, err := Retry(ctx, c.cfg.Retry, c.cfg.Logger, func(ctx context.Context) (*anthropic.Message, error) {
		res, err := c.client.Messages.New(ctx, params)
		return res, classifyClaudeError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("claude chat: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("claude chat: %w", ErrEmptyResponse)
	}

	return &Completion{
		Text:    text.String(),
		Retries: retries,
		Raw:     json.RawMessage(resp.RawJSON()),
		Config:  ModelConfig{Model: c.cfg.Model, Temperature: c.cfg.Temperature, MaxTokens: c.cfg.MaxTokens},
	}, nil
}

func toClaudeMessages(messages []domain.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case domain.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, out
}

// classifyClaudeError помечает временные ошибки API, включая 529 overloaded.
func classifyClaudeError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == statusOverloaded || shouldRetryHTTPStatus(apiErr.StatusCode, retryableStatus) {
			return MarkTransient(err)
		}
	}
	return err
}
