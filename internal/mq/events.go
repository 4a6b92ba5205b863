package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/llmflows/internal/flow"
)

// StepEvent — payload событий шага.
type StepEvent struct {
	RunID     uuid.UUID `json:"run_id"`
	Step      string    `json:"step"`
	Kind      string    `json:"kind,omitempty"`
	OutputKey string    `json:"output_key,omitempty"`

	// Result — сгенерированный текст. Только step.completed и только
	// при EventCallbackConfig.IncludeResult.
	Result string `json:"result,omitempty"`

	DurationMS int64  `json:"duration_ms,omitempty"`
	Retries    int    `json:"retries,omitempty"`
	Error      string `json:"error,omitempty"`
}

// EventPublisher — получатель событий. *Publisher реализует этот интерфейс.
type EventPublisher interface {
	Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error
}

// EventCallbackConfig — настройки EventCallback.
type EventCallbackConfig struct {
	// Exchange — куда публиковать. По умолчанию ExchangeEvents.
	Exchange Exchange

	// IncludeResult добавляет результат шага в step.completed.
	IncludeResult bool

	// Logger — логгер. По умолчанию slog.Default().
	Logger *slog.Logger
}

// EventCallback — flow.Callback, публикующий события шагов.
//
// Ошибки публикации логируются и не влияют на выполнение шага.
type EventCallback struct {
	publisher EventPublisher
	cfg       EventCallbackConfig
	logger    *slog.Logger
}

var _ flow.Callback = (*EventCallback)(nil)

// NewEventCallback создаёт callback.
func NewEventCallback(publisher EventPublisher, cfg EventCallbackConfig) *EventCallback {
	if cfg.Exchange == "" {
		cfg.Exchange = ExchangeEvents
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EventCallback{publisher: publisher, cfg: cfg, logger: logger}
}

// OnStart реализует flow.Callback.
func (c *EventCallback) OnStart(ctx context.Context, step *flow.Step, _ map[string]string) {
	c.publish(ctx, RoutingKeyStepStarted, MessageTypeStepStarted, StepEvent{
		RunID:     flow.RunIDFromContext(ctx),
		Step:      step.Name,
		Kind:      step.Kind.String(),
		OutputKey: step.OutputKey,
	})
}

// OnResults реализует flow.Callback.
func (c *EventCallback) OnResults(context.Context, *flow.Step, string) {}

// OnEnd реализует flow.Callback.
func (c *EventCallback) OnEnd(ctx context.Context, exec *flow.Execution) {
	ev := StepEvent{
		RunID:      exec.RunID,
		Step:       exec.StepName,
		DurationMS: exec.Duration.Milliseconds(),
	}
	for key, value := range exec.Result {
		ev.OutputKey = key
		if c.cfg.IncludeResult {
			ev.Result = value
		}
	}
	if retries, ok := exec.CallData["retries"].(int); ok {
		ev.Retries = retries
	}

	c.publish(ctx, RoutingKeyStepCompleted, MessageTypeStepCompleted, ev)
}

// OnError реализует flow.Callback.
func (c *EventCallback) OnError(ctx context.Context, step *flow.Step, err error) {
	c.publish(ctx, RoutingKeyStepFailed, MessageTypeStepFailed, StepEvent{
		RunID:     flow.RunIDFromContext(ctx),
		Step:      step.Name,
		Kind:      step.Kind.String(),
		OutputKey: step.OutputKey,
		Error:     err.Error(),
	})
}

func (c *EventCallback) publish(ctx context.Context, key RoutingKey, msgType MessageType, ev StepEvent) {
	// Событие отправляется даже если run уже отменён
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := c.publisher.Publish(ctx, c.cfg.Exchange, key, NewMessage(msgType, ev)); err != nil {
		c.logger.Warn("failed to publish step event",
			"step", ev.Step,
			"type", msgType,
			"error", err,
		)
	}
}
