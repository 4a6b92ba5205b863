package flow

import (
	"fmt"
	"sort"
)

// Flow — граф шагов, достижимых из корня, зафиксированный на момент New.
//
// Flow не хранит состояние выполнения: каждый Run executor'а создаёт
// собственное состояние, поэтому один Flow можно запускать многократно,
// в том числе параллельно.
type Flow struct {
	root  StepID
	order []StepID

	steps map[StepID]*Step
	next  map[StepID][]StepID

	// parentKeys — output keys всех родителей шага, включая родителей вне flow.
	parentKeys map[StepID][]string

	// externalKeys — output keys родителей, не достижимых из root.
	// Их может предоставить только пользователь.
	externalKeys map[StepID][]string

	names      map[string]StepID
	outputKeys map[string]StepID
	inputKeys  map[string]struct{}
}

// New строит Flow обходом в ширину от root.
//
// Возвращает ErrDuplicateName / ErrDuplicateOutputKey при первом
// совпадении и собирает объединение required keys всех шагов.
func New(g *Graph, root StepID) (*Flow, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.valid(root) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStep, root)
	}

	f := &Flow{
		root:         root,
		steps:        make(map[StepID]*Step),
		next:         make(map[StepID][]StepID),
		parentKeys:   make(map[StepID][]string),
		externalKeys: make(map[StepID][]string),
		names:        make(map[string]StepID),
		outputKeys:   make(map[string]StepID),
		inputKeys:    make(map[string]struct{}),
	}

	// Обход в ширину с дедупликацией по идентификатору
	queue := []StepID{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, seen := f.steps[id]; seen {
			continue
		}

		n := g.nodes[id]
		f.steps[id] = n.step
		f.order = append(f.order, id)
		f.next[id] = append([]StepID(nil), n.next...)
		for _, p := range n.parents {
			f.parentKeys[id] = append(f.parentKeys[id], g.nodes[p].step.OutputKey)
		}

		queue = append(queue, n.next...)
	}

	for _, id := range f.order {
		for _, p := range g.nodes[id].parents {
			if _, ok := f.steps[p]; !ok {
				f.externalKeys[id] = append(f.externalKeys[id], g.nodes[p].step.OutputKey)
			}
		}
	}

	if err := f.checkUniqueAttributes(); err != nil {
		return nil, err
	}

	return f, nil
}

// checkUniqueAttributes проверяет уникальность имён и output keys
// и заполняет inputKeys.
func (f *Flow) checkUniqueAttributes() error {
	for _, id := range f.order {
		step := f.steps[id]

		if _, ok := f.names[step.Name]; ok {
			return &GraphError{
				Step:    step.Name,
				Message: "step name is not unique in flow",
				Err:     ErrDuplicateName,
			}
		}
		f.names[step.Name] = id

		if prev, ok := f.outputKeys[step.OutputKey]; ok {
			return &GraphError{
				Step:    step.Name,
				Key:     step.OutputKey,
				Message: fmt.Sprintf("output key %q is already produced by %q", step.OutputKey, f.steps[prev].Name),
				Err:     ErrDuplicateOutputKey,
			}
		}
		f.outputKeys[step.OutputKey] = id

		for _, key := range step.RequiredKeys {
			f.inputKeys[key] = struct{}{}
		}
	}

	return nil
}

// Root возвращает корневой шаг.
func (f *Flow) Root() *Step {
	return f.steps[f.root]
}

// Steps возвращает шаги в порядке обхода в ширину.
func (f *Flow) Steps() []*Step {
	out := make([]*Step, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.steps[id])
	}
	return out
}

// StepByName возвращает шаг по имени.
func (f *Flow) StepByName(name string) (*Step, bool) {
	id, ok := f.names[name]
	if !ok {
		return nil, false
	}
	return f.steps[id], true
}

// InputKeys возвращает отсортированное объединение required keys.
func (f *Flow) InputKeys() []string {
	return sortedKeys(f.inputKeys)
}

// OutputKeys возвращает отсортированный список output keys.
func (f *Flow) OutputKeys() []string {
	return sortedKeys(f.outputKeys)
}

// CheckInputs проверяет, что каждый required key либо публикуется
// каким-то шагом, либо передан пользователем.
// Вызывается до выполнения первого шага.
func (f *Flow) CheckInputs(inputs map[string]string) error {
	var missing []string
	for key := range f.inputKeys {
		if _, ok := f.outputKeys[key]; ok {
			continue
		}
		if _, ok := inputs[key]; ok {
			continue
		}
		missing = append(missing, key)
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingInputError{Keys: missing}
	}
	return nil
}

// BlockedSteps возвращает шаги, которые не будут выполнены при данных
// входах: у них есть родитель вне flow, и его output key не передан
// пользователем и не публикуется ни одним шагом flow.
// Потомки таких шагов в ответ не входят.
func (f *Flow) BlockedSteps(inputs map[string]string) []*MissingInputError {
	var blocked []*MissingInputError
	for _, id := range f.order {
		var missing []string
		for _, key := range f.externalKeys[id] {
			if _, ok := f.outputKeys[key]; ok {
				continue
			}
			if _, ok := inputs[key]; ok {
				continue
			}
			missing = append(missing, key)
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			blocked = append(blocked, &MissingInputError{Step: f.steps[id].Name, Keys: missing})
		}
	}
	return blocked
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
