package flow

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ConcurrentExecutor выполняет следующие шаги каждого шага параллельно.
//
// Правила готовности и однократного выполнения те же, что у
// SequentialExecutor. Шаг с несколькими родителями запускает ветка,
// которая опубликовала последний недостающий ключ: остальные ветки
// видят его неготовым или уже захваченным и ничего не делают.
//
// Ошибка любого шага отменяет контекст всех выполняющихся веток.
type ConcurrentExecutor struct {
	executor
	maxConcurrency int
}

// NewConcurrentExecutor создаёт параллельный executor.
func NewConcurrentExecutor(f *Flow, cfg Config) *ConcurrentExecutor {
	e := &ConcurrentExecutor{
		executor:       newExecutor(f, cfg),
		maxConcurrency: cfg.MaxConcurrency,
	}
	if e.out != nil {
		e.out = &lockedWriter{w: e.out}
	}
	return e
}

// Run реализует Executor.
func (e *ConcurrentExecutor) Run(ctx context.Context, inputs map[string]string) (map[string]*Execution, error) {
	ctx, st, logger, err := e.begin(ctx, inputs)
	if err != nil {
		return nil, err
	}

	var sem *semaphore.Weighted
	if e.maxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(e.maxConcurrency))
	}

	start := time.Now()
	logger.Info("run started", "executor", "concurrent", "steps", len(e.flow.order))

	if err := e.visit(ctx, st, e.flow.root, sem, logger); err != nil {
		logger.Error("run failed", "error", err)
		return nil, err
	}

	results := st.snapshot()
	logger.Info("run completed", "executed", len(results), "duration", time.Since(start))
	return results, nil
}

// visit выполняет шаг, если он готов, затем запускает все следующие
// шаги в отдельных горутинах и ждёт их завершения.
func (e *ConcurrentExecutor) visit(ctx context.Context, st *runState, id StepID, sem *semaphore.Weighted, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	inputs, ok, err := st.claim(e.flow, id)
	if err != nil || !ok {
		return err
	}

	// Слот занимается только на время выполнения шага, не на обход
	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			st.fail(id)
			return err
		}
	}
	err = e.runClaimed(ctx, st, id, inputs, logger)
	if sem != nil {
		sem.Release(1)
	}
	if err != nil {
		return err
	}

	next := e.flow.next[id]
	if len(next) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range next {
		g.Go(func() error {
			return e.visit(gctx, st, n, sem, logger)
		})
	}
	return g.Wait()
}
