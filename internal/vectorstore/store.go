package vectorstore

import (
	"context"
	"fmt"

	"github.com/shaiso/llmflows/internal/domain"
)

// Store — векторное хранилище.
type Store interface {
	// Upsert добавляет документы или заменяет документы с тем же ID.
	// Текст документа сохраняется в метаданных под domain.MetadataTextKey.
	Upsert(ctx context.Context, docs []domain.VectorDoc) error

	// Search возвращает до topK документов, ближайших к query,
	// в порядке убывания Score.
	Search(ctx context.Context, query []float32, topK int) ([]domain.Match, error)
}

// validateDocs проверяет, что у всех документов есть вектор одной размерности.
// dim == 0 — размерность берётся из первого документа.
func validateDocs(docs []domain.VectorDoc, dim int) (int, error) {
	for _, d := range docs {
		if len(d.Embedding) == 0 {
			return dim, fmt.Errorf("doc %s: %w", d.ID, ErrEmptyEmbedding)
		}
		if dim == 0 {
			dim = len(d.Embedding)
		}
		if len(d.Embedding) != dim {
			return dim, fmt.Errorf("doc %s: %w: got %d, want %d", d.ID, ErrDimensionMismatch, len(d.Embedding), dim)
		}
	}
	return dim, nil
}

func validateQuery(query []float32, topK int) error {
	if len(query) == 0 {
		return ErrEmptyEmbedding
	}
	if topK <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	return nil
}
