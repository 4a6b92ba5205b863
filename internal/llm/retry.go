package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/shaiso/llmflows/internal/domain"
)

const (
	defaultInitialDelay = time.Second
	defaultMultiplier   = 1.5
	defaultMaxDelay     = 10 * time.Second
)

// retryableStatus — HTTP статусы, при которых вызов повторяется.
var retryableStatus = []int{408, 409, 429, 500, 502, 503, 504}

// Retry вызывает fn, повторяя временные ошибки по policy.
//
// Возвращает результат и количество повторов. Постоянная ошибка
// возвращается сразу. Если все policy.MaxRetries+1 попыток завершились
// временными ошибками, возвращается *RetryError со всеми ошибками.
func Retry[T any](ctx context.Context, policy domain.RetryPolicy, logger *slog.Logger, fn func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	retries := 0

	for {
		res, err := fn(ctx)
		if err == nil {
			return res, retries, nil
		}

		// Отмена run — не повод повторять
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, retries, ctxErr
		}

		if !IsTransient(err) {
			logger.Error("backend error cannot be resolved by retrying", "error", err)
			return zero, retries, err
		}

		errs = append(errs, err)
		if retries >= policy.MaxRetries {
			return zero, retries, &RetryError{Errs: errs}
		}

		retries++
		delay := calculateBackoff(retries, policy)
		logger.Warn("retrying backend call", "attempt", retries, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return zero, retries, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// calculateBackoff вычисляет задержку перед повтором attempt (с 1):
// InitialDelay * Multiplier^(attempt-1), не больше MaxDelay.
func calculateBackoff(attempt int, policy domain.RetryPolicy) time.Duration {
	initialDelay := policy.InitialDelay
	if initialDelay <= 0 {
		initialDelay = defaultInitialDelay
	}

	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	multiplier := policy.Multiplier
	if multiplier < 1 {
		multiplier = defaultMultiplier
	}

	delay := float64(initialDelay)
	for i := 1; i < attempt; i++ {
		delay *= multiplier
		if delay >= float64(maxDelay) {
			return maxDelay
		}
	}

	if time.Duration(delay) > maxDelay {
		return maxDelay
	}
	return time.Duration(delay)
}

// IsTransient определяет, можно ли повторить вызов.
//
// Временными считаются ошибки, помеченные MarkTransient, таймауты
// запроса и сетевые ошибки. Отмена контекста временной не считается.
// *RetryError постоянна: повторы уже исчерпаны, даже если внутри
// лежат временные ошибки.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRetryExhausted) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Таймаут отдельного запроса; отмену всего run Retry проверяет сам
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// shouldRetryHTTPStatus проверяет, входит ли статус в список повторяемых.
func shouldRetryHTTPStatus(statusCode int, onStatus []int) bool {
	for _, code := range onStatus {
		if statusCode == code {
			return true
		}
	}
	return false
}

// RetryingCompleter повторяет временные ошибки любого Completer.
type RetryingCompleter struct {
	next   Completer
	policy domain.RetryPolicy
	logger *slog.Logger
}

// WithRetry оборачивает Completer повторами.
// Completion.Retries содержит число повторов обёртки.
func WithRetry(next Completer, policy domain.RetryPolicy, logger *slog.Logger) *RetryingCompleter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingCompleter{next: next, policy: policy, logger: logger}
}

// Complete реализует Completer.
func (r *RetryingCompleter) Complete(ctx context.Context, prompt string) (*Completion, error) {
	res, retries, err := Retry(ctx, r.policy, r.logger, func(ctx context.Context) (*Completion, error) {
		return r.next.Complete(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}

	out := *res
	out.Retries += retries
	return &out, nil
}

// RetryingChatModel повторяет временные ошибки любого ChatModel.
type RetryingChatModel struct {
	next   ChatModel
	policy domain.RetryPolicy
	logger *slog.Logger
}

// WithChatRetry оборачивает ChatModel повторами.
func WithChatRetry(next ChatModel, policy domain.RetryPolicy, logger *slog.Logger) *RetryingChatModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingChatModel{next: next, policy: policy, logger: logger}
}

// Chat реализует ChatModel.
func (r *RetryingChatModel) Chat(ctx context.Context, messages []domain.Message) (*Completion, error) {
	res, retries, err := Retry(ctx, r.policy, r.logger, func(ctx context.Context) (*Completion, error) {
		return r.next.Chat(ctx, messages)
	})
	if err != nil {
		return nil, err
	}

	out := *res
	out.Retries += retries
	return &out, nil
}
