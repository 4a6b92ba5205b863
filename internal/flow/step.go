package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// Kind — вариант шага.
type Kind int

const (
	// KindPlain — промпт-шаблон и completion-модель.
	KindPlain Kind = iota + 1

	// KindChat — история сообщений и chat-модель.
	KindChat

	// KindFunction — произвольная функция над входами.
	KindFunction

	// KindVectorSearch — поиск по векторному хранилищу.
	KindVectorSearch
)

// String реализует fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindChat:
		return "chat"
	case KindFunction:
		return "function"
	case KindVectorSearch:
		return "vector_search"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Generator — единственная полиморфная операция шага.
//
// inputs содержит только required keys шага. Реализация не должна
// изменять переданную map.
type Generator interface {
	Generate(ctx context.Context, inputs map[string]string) (*Generation, error)
}

// GeneratorFunc позволяет использовать функцию как Generator.
type GeneratorFunc func(ctx context.Context, inputs map[string]string) (*Generation, error)

// Generate реализует Generator.
func (f GeneratorFunc) Generate(ctx context.Context, inputs map[string]string) (*Generation, error) {
	return f(ctx, inputs)
}

// Generation — результат Generate.
type Generation struct {
	// Result — сгенерированный текст. Публикуется под OutputKey шага.
	Result string

	// CallData — метаданные вызова backend'а (сырые ответы, retries, промпты).
	CallData map[string]any

	// Config — конфигурация модели (model_name, temperature, max_tokens).
	Config map[string]any
}

// Step — узел flow.
//
// Шаг создаётся один раз до сборки графа и не изменяется во время
// выполнения. Состояние диалога chat-шагов хранится в Generator.
type Step struct {
	// Name — имя шага, уникальное в графе. Ключ в результатах run.
	Name string

	// OutputKey — ключ, под которым результат попадает в пространство имён.
	OutputKey string

	// Kind — вариант шага.
	Kind Kind

	// RequiredKeys — входы, без которых шаг не запускается.
	RequiredKeys []string

	// Generator — реализация варианта.
	Generator Generator

	// Callbacks — наблюдатели жизненного цикла в порядке регистрации.
	Callbacks []Callback
}

// validate проверяет обязательные поля шага.
func (s *Step) validate() error {
	switch {
	case s == nil:
		return &GraphError{Message: "step is nil", Err: ErrInvalidStep}
	case s.Name == "":
		return &GraphError{Message: "step name is empty", Err: ErrInvalidStep}
	case s.OutputKey == "":
		return &GraphError{Step: s.Name, Message: "output key is empty", Err: ErrInvalidStep}
	case s.Generator == nil:
		return &GraphError{Step: s.Name, Message: "generator is nil", Err: ErrInvalidStep}
	}
	return nil
}

// Execution — запись о выполнении шага.
type Execution struct {
	// RunID — идентификатор run. uuid.Nil при запуске шага вне executor'а.
	RunID uuid.UUID `json:"run_id"`

	// StepName — имя шага.
	StepName string `json:"step_name"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	// Inputs — входы, переданные в Generate.
	Inputs map[string]string `json:"inputs"`

	// Generated — сырой результат Generate.
	Generated string `json:"generated"`

	// CallData — метаданные вызова backend'а. Движок их не интерпретирует.
	CallData map[string]any `json:"call_data,omitempty"`

	// Config — конфигурация модели.
	Config map[string]any `json:"config,omitempty"`

	// Result — {output_key: generated}.
	Result map[string]string `json:"result"`
}

// Run выполняет шаг вне flow.
// При verbose имя шага и результат печатаются в stdout.
func (s *Step) Run(ctx context.Context, inputs map[string]string, verbose bool) (*Execution, error) {
	var out io.Writer
	if verbose {
		out = os.Stdout
	}
	return s.run(ctx, inputs, out)
}

// run — общий путь выполнения для Step.Run и executor'ов.
// out == nil отключает диагностический вывод.
func (s *Step) run(ctx context.Context, inputs map[string]string, out io.Writer) (*Execution, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	exec := &Execution{
		RunID:     RunIDFromContext(ctx),
		StepName:  s.Name,
		StartedAt: time.Now(),
		Inputs:    copyInputs(inputs),
	}

	// Callbacks получают копии: запись и пространство имён принадлежат движку
	for _, cb := range s.Callbacks {
		cb.OnStart(ctx, s, copyInputs(exec.Inputs))
	}

	gen, err := s.Generator.Generate(ctx, copyInputs(exec.Inputs))
	if err == nil && gen == nil {
		err = errors.New("generator returned no result")
	}
	if err != nil {
		for _, cb := range s.Callbacks {
			cb.OnError(ctx, s, err)
		}
		return nil, &StepError{Step: s.Name, Err: err}
	}

	for _, cb := range s.Callbacks {
		cb.OnResults(ctx, s, gen.Result)
	}

	if out != nil {
		fmt.Fprintf(out, "%s:\n%s\n\n", s.Name, gen.Result)
	}

	// time.Since использует монотонные часы из StartedAt
	exec.FinishedAt = time.Now()
	exec.Duration = time.Since(exec.StartedAt)
	exec.Generated = gen.Result
	exec.CallData = gen.CallData
	exec.Config = gen.Config
	exec.Result = map[string]string{s.OutputKey: gen.Result}

	for _, cb := range s.Callbacks {
		cb.OnEnd(ctx, exec.clone())
	}

	return exec, nil
}

// clone возвращает копию записи. Вложенные значения CallData и Config
// не копируются.
func (e *Execution) clone() *Execution {
	out := *e
	out.Inputs = copyInputs(e.Inputs)
	out.Result = copyInputs(e.Result)
	out.CallData = copyAny(e.CallData)
	out.Config = copyAny(e.Config)
	return &out
}

func copyAny(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyInputs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Ключ контекста для идентификатора run.
type ctxKey string

const ctxRunID ctxKey = "run_id"

// WithRunID добавляет идентификатор run в контекст.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxRunID, id)
}

// RunIDFromContext извлекает идентификатор run.
// Если его нет, возвращает uuid.Nil.
func RunIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(ctxRunID).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
