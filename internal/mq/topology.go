package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges.
const (
	ExchangeEvents Exchange = "llmflows.events"
	ExchangeDLQ    Exchange = "llmflows.dlq"
)

// Queues.
const (
	QueueStepEvents   Queue = "llmflows.step.events"
	QueueStepFailures Queue = "llmflows.step.failures"
	QueueDLQEvents    Queue = "llmflows.dlq.events"
)

// Routing keys. Совпадают с типами событий.
const (
	RoutingKeyStepStarted   RoutingKey = "step.started"
	RoutingKeyStepCompleted RoutingKey = "step.completed"
	RoutingKeyStepFailed    RoutingKey = "step.failed"

	routingKeyAllSteps RoutingKey = "step.*"
	routingKeyDLQ      RoutingKey = "events"
)

// declarer — часть *amqp.Channel, нужная для объявления топологии.
type declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue    Queue
	key      RoutingKey
	exchange Exchange
}

// topology описывает обменники, очереди и привязки.
//
//	llmflows.events (topic)
//	├── llmflows.step.events   [step.*]      все события, DLQ
//	└── llmflows.step.failures [step.failed] только ошибки, DLQ
//	llmflows.dlq (direct)
//	└── llmflows.dlq.events    [events]
func topology() ([]exchangeDecl, []queueDecl, []bindingDecl) {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(routingKeyDLQ),
	}

	exchanges := []exchangeDecl{
		{ExchangeEvents, amqp.ExchangeTopic},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}
	queues := []queueDecl{
		{QueueStepEvents, dlqArgs},
		{QueueStepFailures, dlqArgs},
		{QueueDLQEvents, nil},
	}
	bindings := []bindingDecl{
		{QueueStepEvents, routingKeyAllSteps, ExchangeEvents},
		{QueueStepFailures, RoutingKeyStepFailed, ExchangeEvents},
		{QueueDLQEvents, routingKeyDLQ, ExchangeDLQ},
	}
	return exchanges, queues, bindings
}

// SetupTopology объявляет обменники, очереди и привязки.
// Повторный вызов с той же топологией безопасен.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return declareTopology(ch)
	})
}

func declareTopology(ch declarer) error {
	exchanges, queues, bindings := topology()

	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	for _, b := range bindings {
		if err := ch.QueueBind(string(b.queue), string(b.key), string(b.exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
