package steps

import (
	"context"
	"sync"

	"github.com/shaiso/llmflows/internal/domain"
	"github.com/shaiso/llmflows/internal/llm"
)

// fakeCompleter отвечает фиксированным текстом и запоминает промпты.
type fakeCompleter struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{
		Text:   f.text,
		Raw:    map[string]any{"id": "cmpl-1"},
		Config: llm.ModelConfig{Model: "fake-model", Temperature: 0.7, MaxTokens: 500},
	}, nil
}

// fakeChat повторяет последнее сообщение пользователя и запоминает историю.
type fakeChat struct {
	calls [][]domain.Message
	err   error
}

func (f *fakeChat) Chat(_ context.Context, messages []domain.Message) (*llm.Completion, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return nil, f.err
	}
	last := messages[len(messages)-1]
	return &llm.Completion{
		Text:   "re: " + last.Content,
		Config: llm.ModelConfig{Model: "fake-chat"},
	}, nil
}

// fixedEmbedder возвращает один и тот же вектор для любого текста.
type fixedEmbedder struct {
	vector  []float32
	queries []string
}

func (f *fixedEmbedder) Embed(_ context.Context, texts []string) (*llm.Embeddings, error) {
	f.queries = append(f.queries, texts...)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = f.vector
	}
	return &llm.Embeddings{Vectors: vectors, Retries: 1, Config: llm.ModelConfig{Model: "fake-embed"}}, nil
}
