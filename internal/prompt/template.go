package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Template — разобранный шаблон промпта.
type Template struct {
	text  string
	parts []part
	vars  []string
}

// part — литерал или переменная.
type part struct {
	value    string
	variable bool
}

// New разбирает шаблон.
func New(text string) (*Template, error) {
	parts, err := parse(text)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	vars := make([]string, 0)
	for _, p := range parts {
		if !p.variable {
			continue
		}
		if _, ok := seen[p.value]; ok {
			continue
		}
		seen[p.value] = struct{}{}
		vars = append(vars, p.value)
	}
	sort.Strings(vars)

	return &Template{text: text, parts: parts, vars: vars}, nil
}

// MustNew разбирает шаблон и паникует при ошибке.
// Удобно для шаблонов-констант.
func MustNew(text string) *Template {
	t, err := New(text)
	if err != nil {
		panic(err)
	}
	return t
}

// parse разбивает текст на литералы и переменные.
func parse(text string) ([]part, error) {
	var (
		parts []part
		lit   strings.Builder
	)

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '{':
			// {{ — экранированная скобка
			if i+1 < len(text) && text[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexAny(text[i+1:], "{}")
			if end < 0 || text[i+1+end] != '}' {
				return nil, fmt.Errorf("%w: unclosed '{' at offset %d", ErrTemplateParse, i)
			}
			name := strings.TrimSpace(text[i+1 : i+1+end])
			if name == "" {
				return nil, fmt.Errorf("%w: empty placeholder at offset %d", ErrTemplateParse, i)
			}
			if lit.Len() > 0 {
				parts = append(parts, part{value: lit.String()})
				lit.Reset()
			}
			parts = append(parts, part{value: name, variable: true})
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("%w: single '}' at offset %d", ErrTemplateParse, i)
		default:
			lit.WriteByte(c)
		}
	}

	if lit.Len() > 0 {
		parts = append(parts, part{value: lit.String()})
	}
	return parts, nil
}

// Text возвращает исходный текст шаблона.
func (t *Template) Text() string {
	return t.text
}

// Variables возвращает отсортированный список переменных шаблона.
func (t *Template) Variables() []string {
	out := make([]string, len(t.vars))
	copy(out, t.vars)
	return out
}

// Has проверяет, содержит ли шаблон переменную.
func (t *Template) Has(name string) bool {
	i := sort.SearchStrings(t.vars, name)
	return i < len(t.vars) && t.vars[i] == name
}

// Render подставляет значения переменных.
//
// Все переменные шаблона должны присутствовать в values, иначе
// возвращается ErrMissingVariable со списком недостающих. Лишние ключи
// игнорируются: шаг передаёт сюда все свои входы.
func (t *Template) Render(values map[string]string) (string, error) {
	var missing []string
	for _, v := range t.vars {
		if _, ok := values[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingVariable, strings.Join(missing, ", "))
	}

	var b strings.Builder
	for _, p := range t.parts {
		if p.variable {
			b.WriteString(values[p.value])
			continue
		}
		b.WriteString(p.value)
	}
	return b.String(), nil
}

// String реализует fmt.Stringer.
func (t *Template) String() string {
	return t.text
}
