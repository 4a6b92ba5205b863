package flow

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Executor запускает Flow.
type Executor interface {
	// Run проверяет покрытие входов, выполняет шаги и возвращает
	// записи о выполнении по имени шага. При ошибке частичные
	// результаты не возвращаются.
	Run(ctx context.Context, inputs map[string]string) (map[string]*Execution, error)
}

// Config — настройки executor'а.
type Config struct {
	// Verbose включает печать имени и результата каждого шага.
	Verbose bool

	// Output — куда печатать при Verbose. По умолчанию os.Stdout.
	Output io.Writer

	// StepTimeout — таймаут одного шага. 0 — без таймаута.
	StepTimeout time.Duration

	// MaxConcurrency — максимум одновременно выполняемых шагов.
	// Используется только ConcurrentExecutor. 0 — без ограничения.
	MaxConcurrency int

	// Logger — логгер. По умолчанию slog.Default().
	Logger *slog.Logger
}

// executor — общая часть последовательного и параллельного executor'ов.
type executor struct {
	flow        *Flow
	out         io.Writer
	stepTimeout time.Duration
	logger      *slog.Logger
}

func newExecutor(f *Flow, cfg Config) executor {
	e := executor{
		flow:        f,
		stepTimeout: cfg.StepTimeout,
		logger:      cfg.Logger,
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if cfg.Verbose {
		e.out = cfg.Output
		if e.out == nil {
			e.out = os.Stdout
		}
	}

	return e
}

// begin проверяет входы и создаёт состояние нового run.
func (e *executor) begin(ctx context.Context, inputs map[string]string) (context.Context, *runState, *slog.Logger, error) {
	if err := e.flow.CheckInputs(inputs); err != nil {
		return nil, nil, nil, err
	}

	runID := uuid.New()
	ctx = WithRunID(ctx, runID)
	logger := e.logger.With("run_id", runID.String(), "root", e.flow.Root().Name)

	for _, b := range e.flow.BlockedSteps(inputs) {
		logger.Warn("step will not run: parent output keys are missing", "step", b.Step, "keys", b.Keys)
	}

	return ctx, newRunState(inputs), logger, nil
}

// runClaimed выполняет захваченный шаг и публикует результат.
func (e *executor) runClaimed(ctx context.Context, st *runState, id StepID, inputs map[string]string, logger *slog.Logger) error {
	step := e.flow.steps[id]

	if e.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
	}

	logger.Debug("step started", "step", step.Name, "kind", step.Kind.String())

	exec, err := step.run(ctx, inputs, e.out)
	if err != nil {
		st.fail(id)
		logger.Error("step failed", "step", step.Name, "error", err)
		return err
	}

	st.publish(id, exec)

	logger.Info("step completed",
		"step", step.Name,
		"output_key", step.OutputKey,
		"duration", exec.Duration,
	)

	return nil
}

// lockedWriter сериализует запись из параллельных веток.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
