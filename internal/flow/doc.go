// Package flow реализует движок выполнения flows — DAG из шагов,
// каждый из которых публикует один именованный результат.
//
// Основные компоненты:
//   - Step — единица работы: имя, output key, required keys и Generator
//   - Graph — арена шагов со связями в виде индексов (StepID)
//   - Flow — снимок графа, достижимого из корневого шага, с проверкой ключей
//   - SequentialExecutor — обход в глубину слева направо
//   - ConcurrentExecutor — следующие шаги запускаются параллельно
//
// Сборка и запуск:
//
//	g := flow.NewGraph()
//	title, _ := g.Add(titleStep)
//	lyrics, _ := g.Add(lyricsStep)
//	if err := g.Connect(title, lyrics); err != nil { ... }
//
//	f, err := flow.New(g, title)
//	results, err := flow.NewSequentialExecutor(f, flow.Config{}).Run(ctx, inputs)
//
// Шаг становится готовым, когда в общем пространстве имён есть output key
// каждого его родителя. Каждый шаг выполняется не более одного раза за run.
package flow
