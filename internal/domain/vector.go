package domain

import "github.com/google/uuid"

// MetadataTextKey — ключ метаданных, под которым хранится исходный текст документа.
const MetadataTextKey = "text"

// VectorDoc — документ для векторного хранилища.
type VectorDoc struct {
	// ID — идентификатор документа. NewVectorDoc генерирует UUID.
	ID string `json:"id"`

	// Doc — исходный текст.
	Doc string `json:"doc"`

	// Embedding — вектор, полученный от embeddings-модели.
	// Пустой, пока документ не прошёл через Embed.
	Embedding []float32 `json:"embedding,omitempty"`

	// Metadata — произвольные метаданные документа.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewVectorDoc создаёт документ со сгенерированным ID.
func NewVectorDoc(doc string) VectorDoc {
	return VectorDoc{
		ID:       uuid.NewString(),
		Doc:      doc,
		Metadata: make(map[string]any),
	}
}

// StoredMetadata возвращает метаданные для записи в хранилище.
// Текст документа кладётся под MetadataTextKey, исходная map не меняется.
func (d VectorDoc) StoredMetadata() map[string]any {
	meta := make(map[string]any, len(d.Metadata)+1)
	for k, v := range d.Metadata {
		meta[k] = v
	}
	meta[MetadataTextKey] = d.Doc
	return meta
}

// Match — один результат поиска по векторному хранилищу.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text возвращает текст документа из метаданных.
func (m Match) Text() string {
	if s, ok := m.Metadata[MetadataTextKey].(string); ok {
		return s
	}
	return ""
}
