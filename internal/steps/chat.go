package steps

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/llmflows/internal/flow"
	"github.com/shaiso/llmflows/internal/llm"
	"github.com/shaiso/llmflows/internal/prompt"
)

// ChatConfig — настройки шага с chat-моделью.
type ChatConfig struct {
	Name      string
	OutputKey string

	// LLM — chat-модель.
	LLM llm.ChatModel

	// History — история диалога. По умолчанию пустая история без ограничения.
	// Одну историю могут использовать только шаги, которые не выполняются
	// одновременно.
	History *llm.MessageHistory

	// SystemPrompt — шаблон системного промпта. nil — без системного промпта.
	SystemPrompt *prompt.Template

	// MessageKey — входной ключ с сообщением пользователя. Обязателен.
	MessageKey string

	// MessagePrompt — шаблон сообщения пользователя. Если задан,
	// должен содержать переменную MessageKey.
	MessagePrompt *prompt.Template

	Callbacks []flow.Callback

	// Logger — логгер. По умолчанию slog.Default().
	Logger *slog.Logger
}

// NewChat создаёт шаг, который добавляет сообщение пользователя в историю,
// отправляет историю в chat-модель и сохраняет ответ.
func NewChat(cfg ChatConfig) (*flow.Step, error) {
	if err := checkBase(cfg.Name, cfg.OutputKey); err != nil {
		return nil, err
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("%w: step %s: llm is nil", ErrInvalidConfig, cfg.Name)
	}
	if cfg.MessageKey == "" {
		return nil, fmt.Errorf("%w: step %s: message key is empty", ErrInvalidConfig, cfg.Name)
	}
	if cfg.MessagePrompt != nil && !cfg.MessagePrompt.Has(cfg.MessageKey) {
		return nil, fmt.Errorf("%w: step %s: message prompt does not contain message key %q",
			ErrInvalidConfig, cfg.Name, cfg.MessageKey)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SystemPrompt != nil && cfg.SystemPrompt.Has(cfg.MessageKey) {
		logger.Warn("message key matches a system prompt variable",
			"step", cfg.Name,
			"message_key", cfg.MessageKey,
			"system_prompt_variables", cfg.SystemPrompt.Variables(),
		)
	}

	history := cfg.History
	if history == nil {
		history = llm.NewMessageHistory(0)
	}

	return &flow.Step{
		Name:         cfg.Name,
		OutputKey:    cfg.OutputKey,
		Kind:         flow.KindChat,
		RequiredKeys: unionKeys([]string{cfg.MessageKey}, cfg.SystemPrompt, cfg.MessagePrompt),
		Generator: &chatGenerator{
			step:          cfg.Name,
			llm:           cfg.LLM,
			history:       history,
			systemPrompt:  cfg.SystemPrompt,
			messageKey:    cfg.MessageKey,
			messagePrompt: cfg.MessagePrompt,
		},
		Callbacks: cfg.Callbacks,
	}, nil
}

type chatGenerator struct {
	step          string
	llm           llm.ChatModel
	systemPrompt  *prompt.Template
	messageKey    string
	messagePrompt *prompt.Template

	// mu сериализует Generate: история меняется между вызовами
	mu      sync.Mutex
	history *llm.MessageHistory
}

// Generate реализует flow.Generator.
func (g *chatGenerator) Generate(ctx context.Context, inputs map[string]string) (*flow.Generation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var systemPrompt string
	if g.systemPrompt != nil {
		rendered, err := g.systemPrompt.Render(inputs)
		if err != nil {
			return nil, err
		}
		systemPrompt = rendered
	}

	message, err := g.message(inputs)
	if err != nil {
		return nil, err
	}

	// При ошибке модели история возвращается к прежнему состоянию
	prev := g.history.Messages()

	if g.systemPrompt != nil {
		g.history.SetSystemPrompt(systemPrompt)
	}
	g.history.AddUserMessage(message)

	res, err := g.llm.Chat(ctx, g.history.Messages())
	if err != nil {
		if rbErr := g.history.SetMessages(prev); rbErr != nil {
			return nil, fmt.Errorf("%w (restore history: %v)", err, rbErr)
		}
		return nil, err
	}

	g.history.AddAssistantMessage(res.Text)

	callData := res.CallData()
	callData["system_prompt_template"] = templateText(g.systemPrompt)
	callData["system_prompt"] = systemPrompt
	callData["message_prompt_template"] = templateText(g.messagePrompt)
	callData["message_prompt"] = message
	callData["message_history"] = g.history.Messages()

	return &flow.Generation{
		Result:   res.Text,
		CallData: callData,
		Config:   res.Config.Map(),
	}, nil
}

// message строит сообщение пользователя из шаблона или берёт его из входов.
func (g *chatGenerator) message(inputs map[string]string) (string, error) {
	if g.messagePrompt != nil {
		return g.messagePrompt.Render(inputs)
	}
	msg, ok := inputs[g.messageKey]
	if !ok {
		return "", &flow.MissingInputError{Step: g.step, Keys: []string{g.messageKey}}
	}
	return msg, nil
}

func templateText(t *prompt.Template) string {
	if t == nil {
		return ""
	}
	return t.Text()
}
