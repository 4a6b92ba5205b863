package flow

import (
	"sort"
	"sync"

	"github.com/shaiso/llmflows/internal/domain"
)

// runState — состояние одного run.
//
// Все изменения проходят через claim/publish/fail под одной блокировкой:
// проверка готовности и захват шага атомарны, поэтому шаг выполняется
// не более одного раза даже при параллельных ветках.
type runState struct {
	mu sync.Mutex

	// inputs — общее пространство имён: входы пользователя и результаты шагов.
	inputs map[string]string

	// results — записи о выполнении по имени шага.
	results map[string]*Execution

	// status — статусы шагов. Отсутствие записи означает PENDING.
	status map[StepID]domain.StepStatus
}

func newRunState(inputs map[string]string) *runState {
	return &runState{
		inputs:  copyInputs(inputs),
		results: make(map[string]*Execution),
		status:  make(map[StepID]domain.StepStatus),
	}
}

// claim проверяет готовность шага и захватывает его.
//
// Возвращает входы шага (только required keys) и true, если шаг
// нужно выполнить сейчас. false без ошибки означает, что шаг уже
// захвачен или ещё не готов: не все родители опубликовали результат.
func (s *runState) claim(f *Flow, id StepID) (map[string]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status[id].Claimed() {
		return nil, false, nil
	}

	for _, key := range f.parentKeys[id] {
		if _, ok := s.inputs[key]; !ok {
			return nil, false, nil
		}
	}

	step := f.steps[id]
	required := make(map[string]string, len(step.RequiredKeys))
	var missing []string
	for _, key := range step.RequiredKeys {
		v, ok := s.inputs[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		required[key] = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, false, &MissingInputError{Step: step.Name, Keys: missing}
	}

	s.status[id] = domain.StepStatusRunning
	return required, true, nil
}

// publish сохраняет запись и добавляет результат в пространство имён.
func (s *runState) publish(id StepID, exec *Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[exec.StepName] = exec
	for k, v := range exec.Result {
		s.inputs[k] = v
	}
	s.status[id] = domain.StepStatusDone
}

// fail помечает шаг как упавший.
func (s *runState) fail(id StepID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = domain.StepStatusFailed
}

// snapshot возвращает копию результатов.
func (s *runState) snapshot() map[string]*Execution {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*Execution, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}
