package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/llmflows/internal/flow"
	"github.com/shaiso/llmflows/internal/llm"
	"github.com/shaiso/llmflows/internal/prompt"
	"github.com/shaiso/llmflows/internal/vectorstore"
)

// VectorSearchConfig — настройки шага поиска по векторному хранилищу.
type VectorSearchConfig struct {
	Name      string
	OutputKey string

	// Embedder — модель для эмбеддинга запроса.
	Embedder llm.Embedder

	// Store — хранилище, по которому идёт поиск.
	Store vectorstore.Store

	// Prompt — шаблон поискового запроса.
	Prompt *prompt.Template

	// TopK — сколько документов запрашивать. По умолчанию 1.
	TopK int

	// AppendTopK — результат из текстов всех найденных документов через "\n".
	// Иначе результат — текст лучшего совпадения.
	AppendTopK bool

	Callbacks []flow.Callback
}

// NewVectorSearch создаёт шаг, который эмбеддит запрос и ищет
// ближайшие документы.
func NewVectorSearch(cfg VectorSearchConfig) (*flow.Step, error) {
	if err := checkBase(cfg.Name, cfg.OutputKey); err != nil {
		return nil, err
	}
	switch {
	case cfg.Embedder == nil:
		return nil, fmt.Errorf("%w: step %s: embedder is nil", ErrInvalidConfig, cfg.Name)
	case cfg.Store == nil:
		return nil, fmt.Errorf("%w: step %s: store is nil", ErrInvalidConfig, cfg.Name)
	case cfg.Prompt == nil:
		return nil, fmt.Errorf("%w: step %s: prompt is nil", ErrInvalidConfig, cfg.Name)
	case cfg.TopK < 0:
		return nil, fmt.Errorf("%w: step %s: top_k is negative", ErrInvalidConfig, cfg.Name)
	}

	topK := cfg.TopK
	if topK == 0 {
		topK = 1
	}

	return &flow.Step{
		Name:         cfg.Name,
		OutputKey:    cfg.OutputKey,
		Kind:         flow.KindVectorSearch,
		RequiredKeys: cfg.Prompt.Variables(),
		Generator: &vectorSearchGenerator{
			embedder:   cfg.Embedder,
			store:      cfg.Store,
			prompt:     cfg.Prompt,
			topK:       topK,
			appendTopK: cfg.AppendTopK,
		},
		Callbacks: cfg.Callbacks,
	}, nil
}

type vectorSearchGenerator struct {
	embedder   llm.Embedder
	store      vectorstore.Store
	prompt     *prompt.Template
	topK       int
	appendTopK bool
}

// Generate реализует flow.Generator.
func (g *vectorSearchGenerator) Generate(ctx context.Context, inputs map[string]string) (*flow.Generation, error) {
	query, err := g.prompt.Render(inputs)
	if err != nil {
		return nil, err
	}

	emb, err := g.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(emb.Vectors) == 0 {
		return nil, fmt.Errorf("embed query: %w", llm.ErrEmptyResponse)
	}

	matches, err := g.store.Search(ctx, emb.Vectors[0], g.topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrNoMatches
	}

	result := matches[0].Text()
	if g.appendTopK {
		texts := make([]string, 0, len(matches))
		for _, m := range matches {
			texts = append(texts, m.Text())
		}
		result = strings.Join(texts, "\n")
	}

	return &flow.Generation{
		Result: result,
		CallData: map[string]any{
			"query":   query,
			"matches": matches,
			"retries": emb.Retries,
		},
		Config: map[string]any{
			"model_name": emb.Config.Model,
			"top_k":      g.topK,
		},
	}, nil
}
