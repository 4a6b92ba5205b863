package steps

import (
	"context"
	"fmt"

	"github.com/shaiso/llmflows/internal/flow"
)

// Func — пользовательская функция шага.
// args содержит только объявленные ключи. Результат должен быть строкой.
type Func func(ctx context.Context, args map[string]string) (any, error)

// FunctionConfig — настройки функционального шага.
type FunctionConfig struct {
	Name      string
	OutputKey string

	// Keys — входы функции. Становятся required keys шага.
	Keys []string

	// Fn — вызываемая функция.
	Fn Func

	Callbacks []flow.Callback
}

// NewFunction создаёт шаг, вызывающий Fn без модели.
// CallData и Config у такого шага пустые.
func NewFunction(cfg FunctionConfig) (*flow.Step, error) {
	if err := checkBase(cfg.Name, cfg.OutputKey); err != nil {
		return nil, err
	}
	if cfg.Fn == nil {
		return nil, fmt.Errorf("%w: step %s: function is nil", ErrInvalidConfig, cfg.Name)
	}

	keys := unionKeys(cfg.Keys)
	return &flow.Step{
		Name:         cfg.Name,
		OutputKey:    cfg.OutputKey,
		Kind:         flow.KindFunction,
		RequiredKeys: keys,
		Generator:    &functionGenerator{step: cfg.Name, keys: keys, fn: cfg.Fn},
		Callbacks:    cfg.Callbacks,
	}, nil
}

type functionGenerator struct {
	step string
	keys []string
	fn   Func
}

// Generate реализует flow.Generator.
func (g *functionGenerator) Generate(ctx context.Context, inputs map[string]string) (*flow.Generation, error) {
	args, err := pick(g.step, inputs, g.keys)
	if err != nil {
		return nil, err
	}

	out, err := g.fn(ctx, args)
	if err != nil {
		return nil, err
	}

	text, ok := out.(string)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNonTextResult, out)
	}
	return &flow.Generation{Result: text}, nil
}
