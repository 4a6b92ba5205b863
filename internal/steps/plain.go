package steps

import (
	"context"
	"fmt"

	"github.com/shaiso/llmflows/internal/flow"
	"github.com/shaiso/llmflows/internal/llm"
	"github.com/shaiso/llmflows/internal/prompt"
)

// PlainConfig — настройки шага с completion-моделью.
type PlainConfig struct {
	Name      string
	OutputKey string

	// LLM — completion-модель.
	LLM llm.Completer

	// Prompt — шаблон промпта. Его переменные становятся required keys.
	Prompt *prompt.Template

	Callbacks []flow.Callback
}

// NewPlain создаёт шаг, который рендерит промпт и вызывает completion-модель.
func NewPlain(cfg PlainConfig) (*flow.Step, error) {
	if err := checkBase(cfg.Name, cfg.OutputKey); err != nil {
		return nil, err
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("%w: step %s: llm is nil", ErrInvalidConfig, cfg.Name)
	}
	if cfg.Prompt == nil {
		return nil, fmt.Errorf("%w: step %s: prompt is nil", ErrInvalidConfig, cfg.Name)
	}

	return &flow.Step{
		Name:         cfg.Name,
		OutputKey:    cfg.OutputKey,
		Kind:         flow.KindPlain,
		RequiredKeys: cfg.Prompt.Variables(),
		Generator:    &plainGenerator{llm: cfg.LLM, prompt: cfg.Prompt},
		Callbacks:    cfg.Callbacks,
	}, nil
}

type plainGenerator struct {
	llm    llm.Completer
	prompt *prompt.Template
}

// Generate реализует flow.Generator.
func (g *plainGenerator) Generate(ctx context.Context, inputs map[string]string) (*flow.Generation, error) {
	text, err := g.prompt.Render(inputs)
	if err != nil {
		return nil, err
	}

	res, err := g.llm.Complete(ctx, text)
	if err != nil {
		return nil, err
	}

	callData := res.CallData()
	callData["prompt_template"] = g.prompt.Text()
	callData["prompt"] = text

	return &flow.Generation{
		Result:   res.Text,
		CallData: callData,
		Config:   res.Config.Map(),
	}, nil
}
