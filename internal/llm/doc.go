// Package llm содержит контракты backend'ов и их реализации.
//
// Контракты:
//   - Completer — генерация текста по промпту
//   - ChatModel — ответ по истории сообщений
//   - Embedder — векторы для текстов
//
// Реализации:
//   - OpenAI и Azure OpenAI через openai-go
//   - Claude (только ChatModel) через anthropic-sdk-go
//   - Ollama через github.com/ollama/ollama/api
//
// Каждый клиент получает явный Config; глобального состояния нет.
//
// Временные ошибки (rate limit, timeout, обрыв соединения, 5xx)
// повторяются по domain.RetryPolicy, число повторов попадает в
// Completion.Retries и далее в call data шага под ключом "retries".
// Исчерпанные повторы (*RetryError) временной ошибкой не считаются.
package llm
