package llm

import (
	"context"

	"github.com/shaiso/llmflows/internal/domain"
)

// Completer генерирует текст по промпту.
type Completer interface {
	Complete(ctx context.Context, prompt string) (*Completion, error)
}

// ChatModel отвечает на историю сообщений.
type ChatModel interface {
	Chat(ctx context.Context, messages []domain.Message) (*Completion, error)
}

// Embedder строит векторы для текстов.
// Векторы возвращаются в порядке входных текстов.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (*Embeddings, error)
}

// Completion — ответ completion или chat модели.
type Completion struct {
	// Text — сгенерированный текст.
	Text string `json:"text"`

	// Retries — сколько повторов понадобилось.
	Retries int `json:"retries"`

	// Cached — ответ взят из кэша.
	Cached bool `json:"cached,omitempty"`

	// Raw — сырой ответ backend'а.
	Raw any `json:"raw,omitempty"`

	// Config — параметры модели.
	Config ModelConfig `json:"config"`
}

// CallData возвращает метаданные вызова для записи о выполнении шага.
func (c *Completion) CallData() map[string]any {
	data := map[string]any{
		"raw_outputs": c.Raw,
		"retries":     c.Retries,
	}
	if c.Cached {
		data["cached"] = true
	}
	return data
}

// Embeddings — ответ embeddings модели.
type Embeddings struct {
	Vectors [][]float32
	Retries int
	Raw     any
	Config  ModelConfig
}

// ModelConfig — параметры модели, попадающие в запись о выполнении.
type ModelConfig struct {
	Model       string  `json:"model_name"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Map возвращает конфигурацию в виде map.
func (m ModelConfig) Map() map[string]any {
	return map[string]any{
		"model_name":  m.Model,
		"temperature": m.Temperature,
		"max_tokens":  m.MaxTokens,
	}
}
