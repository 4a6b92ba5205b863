package prompt

import "errors"

// Ошибки шаблонов.
var (
	// ErrTemplateParse — некорректный шаблон (незакрытая скобка, пустое имя).
	ErrTemplateParse = errors.New("prompt template parse failed")

	// ErrMissingVariable — при рендеринге не передано значение переменной.
	ErrMissingVariable = errors.New("prompt variable not provided")
)
