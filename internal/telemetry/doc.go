// Package telemetry обеспечивает наблюдаемость выполнения flow.
//
// Включает:
//   - logging.go — structured logging через slog
//   - callback.go — LoggingCallback, журнал жизненного цикла шагов
//   - metrics.go — Prometheus метрики шагов в виде flow.Callback
//
// Callbacks подключаются к шагам через flow.Step.Callbacks и не влияют
// на результат выполнения.
package telemetry
