package vectorstore

import "errors"

// Ошибки хранилищ.
var (
	// ErrEmptyEmbedding — у документа или запроса нет вектора.
	ErrEmptyEmbedding = errors.New("empty embedding")

	// ErrDimensionMismatch — размерность вектора не совпадает с хранилищем.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidTopK — top_k должен быть положительным.
	ErrInvalidTopK = errors.New("top_k must be positive")
)
