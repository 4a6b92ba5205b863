package telemetry

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/llmflows/internal/flow"
)

// LoggingCallback пишет события жизненного цикла шага в slog.
//
// Logger == nil — логгер берётся из контекста (FromContext).
type LoggingCallback struct {
	Logger *slog.Logger
}

var _ flow.Callback = (*LoggingCallback)(nil)

func (c *LoggingCallback) logger(ctx context.Context, step string) *slog.Logger {
	logger := c.Logger
	if logger == nil {
		logger = FromContext(ctx)
	}
	if id := flow.RunIDFromContext(ctx); id != uuid.Nil {
		logger = WithRunID(logger, id.String())
	}
	return WithStep(logger, step)
}

// OnStart реализует flow.Callback.
func (c *LoggingCallback) OnStart(ctx context.Context, step *flow.Step, inputs map[string]string) {
	c.logger(ctx, step.Name).Debug("step inputs", "kind", step.Kind.String(), "keys", len(inputs))
}

// OnResults реализует flow.Callback.
func (c *LoggingCallback) OnResults(ctx context.Context, step *flow.Step, result string) {
	c.logger(ctx, step.Name).Debug("step generated", "output_key", step.OutputKey, "length", len(result))
}

// OnEnd реализует flow.Callback.
func (c *LoggingCallback) OnEnd(ctx context.Context, exec *flow.Execution) {
	attrs := []any{"duration", exec.Duration}
	if retries, ok := exec.CallData["retries"]; ok {
		attrs = append(attrs, "retries", retries)
	}
	if model, ok := exec.Config["model_name"]; ok {
		attrs = append(attrs, "model", model)
	}
	c.logger(ctx, exec.StepName).Info("step finished", attrs...)
}

// OnError реализует flow.Callback.
func (c *LoggingCallback) OnError(ctx context.Context, step *flow.Step, err error) {
	c.logger(ctx, step.Name).Error("step error", "error", err)
}
