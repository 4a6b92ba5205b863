// Package steps содержит варианты шагов flow.
//
// # Обзор
//
// Каждый конструктор возвращает готовый *flow.Step с заполненными Kind,
// RequiredKeys и Generator:
//
//   - NewPlain — промпт-шаблон и completion-модель
//   - NewChat — история сообщений и chat-модель
//   - NewFunction — функция над входами, без модели
//   - NewVectorSearch — эмбеддинг запроса и поиск по vectorstore.Store
//
// Шаги создаются до сборки графа:
//
//	title, err := steps.NewPlain(steps.PlainConfig{
//	    Name:      "title",
//	    OutputKey: "movie_title",
//	    LLM:       completer,
//	    Prompt:    prompt.MustNew("What is a good title of a movie about {topic}?"),
//	})
//
//	g := flow.NewGraph()
//	titleID, _ := g.Add(title)
//
// # Метаданные вызова
//
// Generation.CallData шагов с моделью содержит raw_outputs и retries
// (см. llm.Completion.CallData), а также отрендеренные промпты.
// Generation.Config содержит model_name, temperature и max_tokens.
//
// # Повторы
//
// Шаги сами не повторяют вызовы. Клиенты llm (OpenAI, Azure OpenAI,
// Claude, Ollama) повторяют временные ошибки сами. Обёртки
// llm.WithRetry / llm.WithChatRetry нужны собственным реализациям
// Completer и ChatModel. Исчерпанные повторы (*llm.RetryError) внешняя
// обёртка не повторяет.
//
// # Файлы пакета
//
//   - step.go          — ошибки и общие проверки конфигурации
//   - plain.go         — NewPlain
//   - chat.go          — NewChat
//   - function.go      — NewFunction
//   - vector_search.go — NewVectorSearch
package steps
