// Package mq публикует события выполнения шагов в RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - events.go     — StepEvent и EventCallback для flow.Step.Callbacks
//   - consumer.go   — потребление событий из очередей
//
// Типы сообщений:
//   - step.started   — шаг начал генерацию
//   - step.completed — шаг завершился, результат опубликован
//   - step.failed    — Generate вернул ошибку
//
// Exchanges:
//   - llmflows.events — события шагов (topic)
//   - llmflows.dlq    — dead letter queue
package mq
