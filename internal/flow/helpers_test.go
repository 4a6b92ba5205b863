package flow

import (
	"context"
	"sync"
)

// fakeGenerator — Generator для тестов: считает вызовы и запоминает входы.
type fakeGenerator struct {
	mu     sync.Mutex
	calls  int
	inputs []map[string]string
	fn     func(ctx context.Context, inputs map[string]string) (string, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, inputs map[string]string) (*Generation, error) {
	g.mu.Lock()
	g.calls++
	g.inputs = append(g.inputs, inputs)
	g.mu.Unlock()

	result, err := g.fn(ctx, inputs)
	if err != nil {
		return nil, err
	}
	return &Generation{
		Result:   result,
		CallData: map[string]any{"fake": true},
		Config:   map[string]any{"model_name": "fake"},
	}, nil
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *fakeGenerator) LastInputs() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.inputs) == 0 {
		return nil
	}
	return g.inputs[len(g.inputs)-1]
}

// newStep создаёт шаг, который возвращает фиксированный текст.
func newStep(name, outputKey, result string, required ...string) (*Step, *fakeGenerator) {
	gen := &fakeGenerator{
		fn: func(context.Context, map[string]string) (string, error) { return result, nil },
	}
	return &Step{
		Name:         name,
		OutputKey:    outputKey,
		Kind:         KindFunction,
		RequiredKeys: required,
		Generator:    gen,
	}, gen
}

func mustAdd(t testingT, g *Graph, step *Step) StepID {
	t.Helper()
	id, err := g.Add(step)
	if err != nil {
		t.Fatalf("add %s: %v", step.Name, err)
	}
	return id
}

func mustConnect(t testingT, g *Graph, from StepID, to ...StepID) {
	t.Helper()
	if err := g.Connect(from, to...); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func mustFlow(t testingT, g *Graph, root StepID) *Flow {
	t.Helper()
	f, err := New(g, root)
	if err != nil {
		t.Fatalf("new flow: %v", err)
	}
	return f
}

// testingT — подмножество testing.TB, нужное хелперам.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}
