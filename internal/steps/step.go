package steps

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shaiso/llmflows/internal/flow"
	"github.com/shaiso/llmflows/internal/prompt"
)

// Ошибки шагов.
var (
	// ErrInvalidConfig — невалидная конфигурация шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrNonTextResult — функция вернула не строку.
	ErrNonTextResult = errors.New("function returned non-text result")

	// ErrNoMatches — поиск по хранилищу ничего не нашёл.
	ErrNoMatches = errors.New("vector search returned no matches")
)

// checkBase проверяет поля, общие для всех вариантов.
func checkBase(name, outputKey string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidConfig)
	}
	if outputKey == "" {
		return fmt.Errorf("%w: step %s: output key is empty", ErrInvalidConfig, name)
	}
	return nil
}

// unionKeys объединяет ключи и переменные шаблонов в отсортированный список.
// nil-шаблоны пропускаются.
func unionKeys(keys []string, templates ...*prompt.Template) []string {
	set := make(map[string]struct{})
	for _, k := range keys {
		set[k] = struct{}{}
	}
	for _, t := range templates {
		if t == nil {
			continue
		}
		for _, v := range t.Variables() {
			set[v] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// pick возвращает значения keys из inputs.
// Отсутствующие ключи возвращаются как *flow.MissingInputError.
func pick(step string, inputs map[string]string, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	var missing []string
	for _, k := range keys {
		v, ok := inputs[k]
		if !ok {
			missing = append(missing, k)
			continue
		}
		out[k] = v
	}
	if len(missing) > 0 {
		return nil, &flow.MissingInputError{Step: step, Keys: missing}
	}
	return out, nil
}
