package vectorstore

import (
	"context"
	"fmt"

	"github.com/shaiso/llmflows/internal/domain"
	"github.com/shaiso/llmflows/internal/llm"
)

// Index эмбеддит тексты документов одним вызовом и записывает их в store.
// Документы с уже заполненным Embedding не пересчитываются.
func Index(ctx context.Context, embedder llm.Embedder, store Store, docs []domain.VectorDoc) error {
	var texts []string
	var pending []int
	for i, d := range docs {
		if len(d.Embedding) == 0 {
			texts = append(texts, d.Doc)
			pending = append(pending, i)
		}
	}

	out := make([]domain.VectorDoc, len(docs))
	copy(out, docs)

	if len(texts) > 0 {
		emb, err := embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed docs: %w", err)
		}
		if len(emb.Vectors) != len(texts) {
			return fmt.Errorf("embed docs: %w: got %d vectors for %d docs", llm.ErrEmptyResponse, len(emb.Vectors), len(texts))
		}
		for j, i := range pending {
			out[i].Embedding = emb.Vectors[j]
		}
	}

	return store.Upsert(ctx, out)
}
