package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/shaiso/llmflows/internal/domain"
)

// MemoryStore — Store в памяти процесса.
// Поиск — полный перебор по косинусной близости.
type MemoryStore struct {
	mu    sync.RWMutex
	dim   int
	docs  []storedDoc
	index map[string]int
}

type storedDoc struct {
	id        string
	embedding []float32
	metadata  map[string]any
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// Upsert реализует Store.
func (m *MemoryStore) Upsert(_ context.Context, docs []domain.VectorDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dim, err := validateDocs(docs, m.dim)
	if err != nil {
		return err
	}
	m.dim = dim

	for _, d := range docs {
		sd := storedDoc{
			id:        d.ID,
			embedding: append([]float32(nil), d.Embedding...),
			metadata:  d.StoredMetadata(),
		}
		if i, ok := m.index[d.ID]; ok {
			m.docs[i] = sd
			continue
		}
		m.index[d.ID] = len(m.docs)
		m.docs = append(m.docs, sd)
	}
	return nil
}

// Search реализует Store. При равном Score порядок — порядок добавления.
func (m *MemoryStore) Search(_ context.Context, query []float32, topK int) ([]domain.Match, error) {
	if err := validateQuery(query, topK); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dim != 0 && len(query) != m.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), m.dim)
	}

	matches := make([]domain.Match, 0, len(m.docs))
	for _, d := range m.docs {
		matches = append(matches, domain.Match{
			ID:       d.id,
			Score:    cosine(query, d.embedding),
			Metadata: copyMetadata(d.metadata),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len возвращает количество документов.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// cosine — косинусная близость. Для нулевого вектора 0.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func copyMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
