package flow

import (
	"fmt"
	"slices"
	"sync"
)

// StepID — индекс шага в арене Graph.
type StepID int

// node — шаг и его связи.
// next задаёт порядок обхода, parents используется только для проверки готовности.
type node struct {
	step    *Step
	next    []StepID
	parents []StepID
}

// Graph — арена шагов.
//
// Шаги добавляются через Add и связываются через Connect. Структурные
// инварианты (уникальность имён и output keys в компоненте связности,
// ацикличность) проверяются до изменения рёбер, поэтому отклонённый
// Connect оставляет граф без изменений.
type Graph struct {
	mu    sync.RWMutex
	nodes []node
}

// NewGraph создаёт пустой граф.
func NewGraph() *Graph {
	return &Graph{}
}

// Add добавляет шаг в арену и возвращает его идентификатор.
func (g *Graph) Add(step *Step) (StepID, error) {
	if err := step.validate(); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range g.nodes {
		if n.step == step {
			return 0, &GraphError{Step: step.Name, Message: "step already added", Err: ErrInvalidStep}
		}
	}

	g.nodes = append(g.nodes, node{step: step})
	return StepID(len(g.nodes) - 1), nil
}

// Len возвращает количество шагов в арене.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Step возвращает шаг по идентификатору.
func (g *Graph) Step(id StepID) (*Step, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.valid(id) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStep, id)
	}
	return g.nodes[id].step, nil
}

// Next возвращает копию списка следующих шагов.
func (g *Graph) Next(id StepID) []StepID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.valid(id) {
		return nil
	}
	return slices.Clone(g.nodes[id].next)
}

// Parents возвращает копию списка родителей.
func (g *Graph) Parents(id StepID) []StepID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.valid(id) {
		return nil
	}
	return slices.Clone(g.nodes[id].parents)
}

// Connect добавляет рёбра from → to[i] в порядке аргументов.
//
// Проверки выполняются до изменения графа:
//  1. output keys новых следующих шагов попарно различны
//  2. ни один кандидат не достигает from (иначе цикл)
//  3. после объединения в компоненте связности нет повторяющихся имён и output keys
//
// Уже существующее ребро повторно не добавляется.
func (g *Graph) Connect(from StepID, to ...StepID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.valid(from) {
		return fmt.Errorf("%w: %d", ErrUnknownStep, from)
	}
	for _, id := range to {
		if !g.valid(id) {
			return fmt.Errorf("%w: %d", ErrUnknownStep, id)
		}
	}
	if len(to) == 0 {
		return nil
	}

	src := g.nodes[from].step

	// 1. Попарная уникальность output keys кандидатов
	keys := make(map[string]StepID, len(to))
	for _, id := range to {
		step := g.nodes[id].step
		if prev, ok := keys[step.OutputKey]; ok {
			return &GraphError{
				Step: src.Name,
				Key:  step.OutputKey,
				Message: fmt.Sprintf("next steps %q and %q share output key %q",
					g.nodes[prev].step.Name, step.Name, step.OutputKey),
				Err: ErrDuplicateOutputKey,
			}
		}
		keys[step.OutputKey] = id
	}

	// 2. Цикл: кандидат уже достигает from
	for _, id := range to {
		if id == from || g.reachable(id, from) {
			return &GraphError{
				Step:    src.Name,
				Message: fmt.Sprintf("connecting to %q creates a cycle", g.nodes[id].step.Name),
				Err:     ErrCycle,
			}
		}
	}

	// 3. Уникальность в объединённой компоненте
	if err := g.checkComponent(append([]StepID{from}, to...)); err != nil {
		return err
	}

	for _, id := range to {
		if slices.Contains(g.nodes[from].next, id) {
			continue
		}
		g.nodes[from].next = append(g.nodes[from].next, id)
		g.nodes[id].parents = append(g.nodes[id].parents, from)
	}

	return nil
}

// Reachable проверяет, есть ли направленный путь from → target.
func (g *Graph) Reachable(from, target StepID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.valid(from) || !g.valid(target) {
		return false
	}
	return g.reachable(from, target)
}

// reachable — обход в глубину по next. Вызывается под блокировкой.
func (g *Graph) reachable(from, target StepID) bool {
	visited := make(map[StepID]bool)
	stack := []StepID{from}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if id == target {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, g.nodes[id].next...)
	}

	return false
}

// checkComponent проверяет уникальность имён и output keys в компоненте
// связности (без учёта направления рёбер), содержащей seeds.
func (g *Graph) checkComponent(seeds []StepID) error {
	visited := make(map[StepID]bool)
	queue := slices.Clone(seeds)
	var component []StepID

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if visited[id] {
			continue
		}
		visited[id] = true
		component = append(component, id)

		queue = append(queue, g.nodes[id].next...)
		queue = append(queue, g.nodes[id].parents...)
	}

	slices.Sort(component)

	names := make(map[string]StepID, len(component))
	outputs := make(map[string]StepID, len(component))
	for _, id := range component {
		step := g.nodes[id].step
		if prev, ok := names[step.Name]; ok {
			return &GraphError{
				Step:    step.Name,
				Message: fmt.Sprintf("name is already used by step #%d", prev),
				Err:     ErrDuplicateName,
			}
		}
		names[step.Name] = id

		if prev, ok := outputs[step.OutputKey]; ok {
			return &GraphError{
				Step:    step.Name,
				Key:     step.OutputKey,
				Message: fmt.Sprintf("output key %q is already produced by %q", step.OutputKey, g.nodes[prev].step.Name),
				Err:     ErrDuplicateOutputKey,
			}
		}
		outputs[step.OutputKey] = id
	}

	return nil
}

func (g *Graph) valid(id StepID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}
