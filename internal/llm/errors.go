package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки backend'ов.
var (
	// ErrTransient — временная ошибка, вызов можно повторить.
	ErrTransient = errors.New("transient backend error")

	// ErrRetryExhausted — все попытки исчерпаны.
	ErrRetryExhausted = errors.New("all retries exhausted")

	// ErrEmptyResponse — backend вернул ответ без вариантов.
	ErrEmptyResponse = errors.New("empty backend response")

	// ErrMissingAPIKey — не задан API ключ.
	ErrMissingAPIKey = errors.New("api key is required")

	// ErrMissingEndpoint — не задан адрес ресурса Azure OpenAI.
	ErrMissingEndpoint = errors.New("endpoint is required")

	// ErrMissingDeployment — не задано имя deployment'а Azure OpenAI.
	ErrMissingDeployment = errors.New("deployment is required")
)

// transientError помечает ошибку как временную.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }
func (e *transientError) Is(target error) bool {
	return target == ErrTransient
}

// MarkTransient помечает ошибку как временную.
// Используется backend'ами, которые сами классифицируют свои ошибки.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// RetryError — все попытки завершились временными ошибками.
type RetryError struct {
	Errs []error
}

// Error реализует интерфейс error.
func (e *RetryError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return ErrRetryExhausted.Error() + ". encountered errors:\n" + strings.Join(msgs, "\n")
}

// Unwrap отдаёт ErrRetryExhausted и все накопленные ошибки.
func (e *RetryError) Unwrap() []error {
	return append([]error{ErrRetryExhausted}, e.Errs...)
}

// StatusError — HTTP ответ backend'а с ошибочным статусом.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error реализует интерфейс error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}
