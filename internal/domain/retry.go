package domain

import "time"

// RetryPolicy — политика повторных вызовов backend'а.
//
// Повторяются только временные ошибки (rate limit, timeout, обрыв соединения,
// недоступность сервиса). Задержка растёт экспоненциально и ограничена MaxDelay.
type RetryPolicy struct {
	// MaxRetries — максимальное количество повторов (без первой попытки).
	MaxRetries int `json:"max_retries,omitempty"`

	// InitialDelay — задержка перед первым повтором.
	InitialDelay time.Duration `json:"initial_delay,omitempty"`

	// Multiplier — множитель задержки между повторами.
	Multiplier float64 `json:"multiplier,omitempty"`

	// MaxDelay — верхняя граница задержки.
	MaxDelay time.Duration `json:"max_delay,omitempty"`
}

// DefaultRetryPolicy возвращает политику по умолчанию:
// 3 повтора, 1s → 1.5s → 2.25s, не больше 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		Multiplier:   1.5,
		MaxDelay:     10 * time.Second,
	}
}
