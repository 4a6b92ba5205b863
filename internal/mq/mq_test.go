package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/llmflows/internal/flow"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakePublisher запоминает опубликованные сообщения.
type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

type sentMessage struct {
	exchange Exchange
	key      RoutingKey
	msg      *Message
}

func (p *fakePublisher) Publish(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentMessage{exchange, key, msg})
	return p.err
}

// fakeAcknowledger запоминает ack/nack.
type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error { a.acked++; return nil }
func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}
func (a *fakeAcknowledger) Reject(uint64, bool) error { return nil }

// fakeDeclarer запоминает объявления топологии.
type fakeDeclarer struct {
	exchanges map[string]string
	queues    map[string]amqp.Table
	bindings  []string
	failOn    string
}

func newFakeDeclarer() *fakeDeclarer {
	return &fakeDeclarer{exchanges: map[string]string{}, queues: map[string]amqp.Table{}}
}

func (d *fakeDeclarer) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	if name == d.failOn {
		return errors.New("access refused")
	}
	d.exchanges[name] = kind
	return nil
}

func (d *fakeDeclarer) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	d.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (d *fakeDeclarer) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	d.bindings = append(d.bindings, exchange+"/"+key+"->"+name)
	return nil
}

func testStep(err error, callbacks ...flow.Callback) *flow.Step {
	return &flow.Step{
		Name:      "title",
		OutputKey: "movie_title",
		Kind:      flow.KindPlain,
		Generator: flow.GeneratorFunc(func(context.Context, map[string]string) (*flow.Generation, error) {
			if err != nil {
				return nil, err
			}
			return &flow.Generation{Result: "Echoes", CallData: map[string]any{"retries": 1}}, nil
		}),
		Callbacks: callbacks,
	}
}

// --- Topology Tests ---

func TestDeclareTopology(t *testing.T) {
	d := newFakeDeclarer()
	if err := declareTopology(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.exchanges[string(ExchangeEvents)] != amqp.ExchangeTopic {
		t.Errorf("events exchange should be topic, got %q", d.exchanges[string(ExchangeEvents)])
	}
	if d.queues[string(QueueStepEvents)]["x-dead-letter-exchange"] != string(ExchangeDLQ) {
		t.Errorf("step events queue should dead-letter to DLQ: %v", d.queues[string(QueueStepEvents)])
	}

	expected := "llmflows.events/step.failed->llmflows.step.failures"
	found := false
	for _, b := range d.bindings {
		if b == expected {
			found = true
		}
	}
	if !found {
		t.Errorf("missing binding %s in %v", expected, d.bindings)
	}
}

func TestDeclareTopology_Error(t *testing.T) {
	d := newFakeDeclarer()
	d.failOn = string(ExchangeDLQ)

	err := declareTopology(d)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(d.queues) != 0 {
		t.Error("queues must not be declared after exchange failure")
	}
}

// --- EventCallback Tests ---

func TestEventCallback_Completed(t *testing.T) {
	pub := &fakePublisher{}
	cb := NewEventCallback(pub, EventCallbackConfig{IncludeResult: true, Logger: discard})

	runID := uuid.New()
	ctx := flow.WithRunID(context.Background(), runID)
	if _, err := testStep(nil, cb).Run(ctx, nil, false); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(pub.sent) != 2 {
		t.Fatalf("expected started and completed events, got %d", len(pub.sent))
	}

	started := pub.sent[0]
	if started.key != RoutingKeyStepStarted || started.exchange != ExchangeEvents {
		t.Errorf("unexpected started routing: %s/%s", started.exchange, started.key)
	}
	if ev := started.msg.Payload.(StepEvent); ev.RunID != runID || ev.Kind != "plain" {
		t.Errorf("unexpected started event: %+v", ev)
	}

	completed := pub.sent[1]
	if completed.msg.Type != MessageTypeStepCompleted {
		t.Errorf("unexpected type %s", completed.msg.Type)
	}
	ev := completed.msg.Payload.(StepEvent)
	if ev.Result != "Echoes" || ev.OutputKey != "movie_title" || ev.Retries != 1 || ev.RunID != runID {
		t.Errorf("unexpected completed event: %+v", ev)
	}
	if _, err := uuid.Parse(completed.msg.ID); err != nil {
		t.Errorf("message id should be a uuid: %v", err)
	}
}

func TestEventCallback_ResultOmittedByDefault(t *testing.T) {
	pub := &fakePublisher{}
	cb := NewEventCallback(pub, EventCallbackConfig{Logger: discard})

	testStep(nil, cb).Run(context.Background(), nil, false)

	if ev := pub.sent[1].msg.Payload.(StepEvent); ev.Result != "" {
		t.Errorf("result should be omitted, got %q", ev.Result)
	}
}

func TestEventCallback_Failed(t *testing.T) {
	pub := &fakePublisher{}
	cb := NewEventCallback(pub, EventCallbackConfig{Exchange: "custom", Logger: discard})

	if _, err := testStep(errors.New("boom"), cb).Run(context.Background(), nil, false); err == nil {
		t.Fatal("expected error")
	}

	last := pub.sent[len(pub.sent)-1]
	if last.key != RoutingKeyStepFailed || last.exchange != "custom" {
		t.Errorf("unexpected routing %s/%s", last.exchange, last.key)
	}
	if ev := last.msg.Payload.(StepEvent); ev.Error != "boom" {
		t.Errorf("unexpected error in event: %q", ev.Error)
	}
}

func TestEventCallback_PublishErrorIgnored(t *testing.T) {
	pub := &fakePublisher{err: ErrNoChannel}
	cb := NewEventCallback(pub, EventCallbackConfig{Logger: discard})

	if _, err := testStep(nil, cb).Run(context.Background(), nil, false); err != nil {
		t.Errorf("publish errors must not fail the step: %v", err)
	}
}

func TestEventCallback_CancelledRunStillPublishes(t *testing.T) {
	var gotErr error
	pub := publisherFunc(func(ctx context.Context, _ Exchange, _ RoutingKey, _ *Message) error {
		gotErr = ctx.Err()
		return nil
	})
	cb := NewEventCallback(pub, EventCallbackConfig{Logger: discard})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cb.OnError(ctx, testStep(nil), context.Canceled)

	if gotErr != nil {
		t.Errorf("publish context should not be cancelled, got %v", gotErr)
	}
}

// --- Consumer Tests ---

func newDelivery(t *testing.T, ack *fakeAcknowledger, msg *Message) amqp.Delivery {
	t.Helper()
	pub, err := encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return amqp.Delivery{Acknowledger: ack, Body: pub.Body, MessageId: pub.MessageId}
}

func TestConsumer_StepEvents(t *testing.T) {
	var got []StepEvent
	consumer := NewConsumer(nil, ConsumerConfig{
		Queue:  QueueStepEvents,
		Logger: discard,
		Handler: StepEventHandler(func(_ context.Context, typ MessageType, ev StepEvent) error {
			if typ != MessageTypeStepCompleted {
				t.Errorf("unexpected type %s", typ)
			}
			got = append(got, ev)
			return nil
		}),
	})

	ack := &fakeAcknowledger{}
	runID := uuid.New()
	msg := NewMessage(MessageTypeStepCompleted, StepEvent{RunID: runID, Step: "title", DurationMS: 12})
	consumer.handle(context.Background(), newDelivery(t, ack, msg))

	if ack.acked != 1 {
		t.Errorf("expected ack, got acked=%d nacked=%d", ack.acked, ack.nacked)
	}
	if len(got) != 1 || got[0].RunID != runID || got[0].DurationMS != 12 {
		t.Errorf("unexpected events %+v", got)
	}
}

func TestConsumer_HandlerErrorRequeues(t *testing.T) {
	consumer := NewConsumer(nil, ConsumerConfig{
		Queue:   QueueStepEvents,
		Logger:  discard,
		Handler: func(context.Context, *Delivery) error { return errors.New("db down") },
	})

	ack := &fakeAcknowledger{}
	consumer.handle(context.Background(), newDelivery(t, ack, NewMessage(MessageTypeStepFailed, StepEvent{})))

	if ack.nacked != 1 || !ack.requeue {
		t.Errorf("expected nack with requeue, got %+v", ack)
	}
}

func TestConsumer_MalformedGoesToDLQ(t *testing.T) {
	consumer := NewConsumer(nil, ConsumerConfig{
		Queue:   QueueStepEvents,
		Logger:  discard,
		Handler: func(context.Context, *Delivery) error { t.Error("handler must not be called"); return nil },
	})

	ack := &fakeAcknowledger{}
	consumer.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("not json")})

	if ack.nacked != 1 || ack.requeue {
		t.Errorf("expected nack without requeue, got %+v", ack)
	}
}

func TestStepEventHandler_IgnoresOtherTypes(t *testing.T) {
	called := false
	h := StepEventHandler(func(context.Context, MessageType, StepEvent) error {
		called = true
		return nil
	})

	if err := h(context.Background(), &Delivery{Message: Message{Type: "run.pending"}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if called {
		t.Error("handler should ignore unknown types")
	}
}

func TestEncode(t *testing.T) {
	msg := NewMessage(MessageTypeStepStarted, StepEvent{Step: "a"})
	pub, err := encode(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pub.DeliveryMode != amqp.Persistent || pub.ContentType != "application/json" {
		t.Errorf("unexpected publishing: %+v", pub)
	}
	if pub.MessageId != msg.ID || pub.Type != "step.started" {
		t.Errorf("ids not propagated: %+v", pub)
	}

	var decoded Message
	if err := json.Unmarshal(pub.Body, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	ev, err := ParsePayload[StepEvent](&decoded)
	if err != nil || ev.Step != "a" {
		t.Errorf("payload not decoded: %+v, %v", ev, err)
	}
}

func TestNextDelay(t *testing.T) {
	if got := nextDelay(time.Second, 30*time.Second); got != 2*time.Second {
		t.Errorf("expected 2s, got %v", got)
	}
	if got := nextDelay(20*time.Second, 30*time.Second); got != 30*time.Second {
		t.Errorf("expected cap 30s, got %v", got)
	}
}

func TestURLFromEnv(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	if URLFromEnv() != DefaultURL() {
		t.Errorf("expected default url, got %s", URLFromEnv())
	}

	t.Setenv("RABBITMQ_URL", "amqp://user:pass@mq:5672/")
	if URLFromEnv() != "amqp://user:pass@mq:5672/" {
		t.Errorf("expected env url, got %s", URLFromEnv())
	}
}

type publisherFunc func(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error

func (f publisherFunc) Publish(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	return f(ctx, exchange, key, msg)
}
