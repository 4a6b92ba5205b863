package flow

import (
	"context"
	"log/slog"
	"time"
)

// SequentialExecutor выполняет шаги обходом в глубину слева направо.
//
// Порядок детерминирован и совпадает с порядком вызовов Connect.
type SequentialExecutor struct {
	executor
}

// NewSequentialExecutor создаёт последовательный executor.
func NewSequentialExecutor(f *Flow, cfg Config) *SequentialExecutor {
	return &SequentialExecutor{executor: newExecutor(f, cfg)}
}

// Run реализует Executor.
func (e *SequentialExecutor) Run(ctx context.Context, inputs map[string]string) (map[string]*Execution, error) {
	ctx, st, logger, err := e.begin(ctx, inputs)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	logger.Info("run started", "executor", "sequential", "steps", len(e.flow.order))

	if err := e.visit(ctx, st, e.flow.root, logger); err != nil {
		logger.Error("run failed", "error", err)
		return nil, err
	}

	results := st.snapshot()
	logger.Info("run completed", "executed", len(results), "duration", time.Since(start))
	return results, nil
}

// visit выполняет шаг, если он готов, и спускается к следующим шагам.
//
// Повторный заход в уже выполненный шаг ничего не делает: его следующие
// шаги были посещены сразу после его выполнения, а шаг, который тогда
// ещё не был готов, посетит его последний родитель.
func (e *SequentialExecutor) visit(ctx context.Context, st *runState, id StepID, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	inputs, ok, err := st.claim(e.flow, id)
	if err != nil || !ok {
		return err
	}

	if err := e.runClaimed(ctx, st, id, inputs, logger); err != nil {
		return err
	}

	for _, next := range e.flow.next[id] {
		if err := e.visit(ctx, st, next, logger); err != nil {
			return err
		}
	}

	return nil
}
