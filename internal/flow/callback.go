package flow

import "context"

// Callback — наблюдатель жизненного цикла шага.
//
// Хуки вызываются синхронно в горутине, выполняющей шаг, и не влияют
// на результат шага. В ConcurrentExecutor хуки разных шагов могут
// вызываться параллельно.
type Callback interface {
	// OnStart вызывается до Generate.
	OnStart(ctx context.Context, step *Step, inputs map[string]string)

	// OnResults вызывается с результатом Generate.
	OnResults(ctx context.Context, step *Step, result string)

	// OnEnd вызывается с готовой записью о выполнении.
	OnEnd(ctx context.Context, exec *Execution)

	// OnError вызывается, если Generate вернул ошибку.
	OnError(ctx context.Context, step *Step, err error)
}

// NoopCallback — пустая реализация Callback.
// Встраивается в собственные callbacks, которым нужны не все хуки.
type NoopCallback struct{}

func (NoopCallback) OnStart(context.Context, *Step, map[string]string) {}
func (NoopCallback) OnResults(context.Context, *Step, string)          {}
func (NoopCallback) OnEnd(context.Context, *Execution)                 {}
func (NoopCallback) OnError(context.Context, *Step, error)             {}

// FuncCallback собирает Callback из функций. Nil-функции пропускаются.
type FuncCallback struct {
	Start   func(ctx context.Context, step *Step, inputs map[string]string)
	Results func(ctx context.Context, step *Step, result string)
	End     func(ctx context.Context, exec *Execution)
	Error   func(ctx context.Context, step *Step, err error)
}

// OnStart реализует Callback.
func (f FuncCallback) OnStart(ctx context.Context, step *Step, inputs map[string]string) {
	if f.Start != nil {
		f.Start(ctx, step, inputs)
	}
}

// OnResults реализует Callback.
func (f FuncCallback) OnResults(ctx context.Context, step *Step, result string) {
	if f.Results != nil {
		f.Results(ctx, step, result)
	}
}

// OnEnd реализует Callback.
func (f FuncCallback) OnEnd(ctx context.Context, exec *Execution) {
	if f.End != nil {
		f.End(ctx, exec)
	}
}

// OnError реализует Callback.
func (f FuncCallback) OnError(ctx context.Context, step *Step, err error) {
	if f.Error != nil {
		f.Error(ctx, step, err)
	}
}
