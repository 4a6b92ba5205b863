package flow

import (
	"errors"
	"strings"
)

// Структурные ошибки графа.
var (
	// ErrDuplicateName — два шага графа имеют одинаковое имя.
	ErrDuplicateName = errors.New("duplicate step name")

	// ErrDuplicateOutputKey — два шага графа публикуют один и тот же ключ.
	ErrDuplicateOutputKey = errors.New("duplicate output key")

	// ErrCycle — новое ребро создало бы цикл.
	ErrCycle = errors.New("cycle detected")

	// ErrUnknownStep — StepID не принадлежит графу.
	ErrUnknownStep = errors.New("unknown step")

	// ErrInvalidStep — у шага не заполнены обязательные поля.
	ErrInvalidStep = errors.New("invalid step")
)

// Ошибки выполнения.
var (
	// ErrMissingInput — не хватает входных ключей для запуска.
	ErrMissingInput = errors.New("missing required input")

	// ErrStepFailed — Generate шага вернул ошибку.
	ErrStepFailed = errors.New("step failed")
)

// GraphError — структурная ошибка с контекстом.
type GraphError struct {
	Step    string // имя шага, на котором обнаружена ошибка
	Key     string // output key, если ошибка связана с ключом
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *GraphError) Error() string {
	if e.Step != "" {
		return "step " + e.Step + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// MissingInputError — перечень недостающих входных ключей.
//
// Step пустой, если ошибка получена при проверке покрытия всего flow
// до начала выполнения.
type MissingInputError struct {
	Step string
	Keys []string
}

// Error реализует интерфейс error.
func (e *MissingInputError) Error() string {
	msg := ErrMissingInput.Error() + ": " + strings.Join(e.Keys, ", ")
	if e.Step != "" {
		return "step " + e.Step + ": " + msg
	}
	return msg
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrMissingInput).
func (e *MissingInputError) Unwrap() error {
	return ErrMissingInput
}

// StepError — ошибка выполнения конкретного шага.
type StepError struct {
	Step string
	Err  error
}

// Error реализует интерфейс error.
func (e *StepError) Error() string {
	return "step " + e.Step + ": " + e.Err.Error()
}

// Unwrap отдаёт ErrStepFailed и исходную ошибку Generator'а.
func (e *StepError) Unwrap() []error {
	return []error{ErrStepFailed, e.Err}
}
