package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/llmflows/internal/flow"
)

// Статусы шагов в метриках.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Metrics — flow.Callback, который считает шаги в Prometheus.
//
// Метрики:
//   - llmflows_steps_total{step,status} — завершённые и упавшие шаги
//   - llmflows_step_duration_seconds{step} — длительность успешных шагов
//   - llmflows_steps_in_flight{step} — выполняемые сейчас шаги
//   - llmflows_step_retries_total{step} — повторы вызовов backend'а
type Metrics struct {
	steps    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	retries  *prometheus.CounterVec
}

var _ flow.Callback = (*Metrics)(nil)

// NewMetrics создаёт метрики и регистрирует их в reg.
// reg == nil — метрики не регистрируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llmflows_steps_total",
			Help: "Total flow steps finished, by status",
		}, []string{"step", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "llmflows_step_duration_seconds",
			Help:    "Duration of successful flow steps",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step"}),
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "llmflows_steps_in_flight",
			Help: "Flow steps currently generating",
		}, []string{"step"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "llmflows_step_retries_total",
			Help: "Backend call retries made by flow steps",
		}, []string{"step"}),
	}
}

// OnStart реализует flow.Callback.
func (m *Metrics) OnStart(_ context.Context, step *flow.Step, _ map[string]string) {
	m.inFlight.WithLabelValues(step.Name).Inc()
}

// OnResults реализует flow.Callback.
func (m *Metrics) OnResults(context.Context, *flow.Step, string) {}

// OnEnd реализует flow.Callback.
func (m *Metrics) OnEnd(_ context.Context, exec *flow.Execution) {
	m.inFlight.WithLabelValues(exec.StepName).Dec()
	m.steps.WithLabelValues(exec.StepName, StatusCompleted).Inc()
	m.duration.WithLabelValues(exec.StepName).Observe(exec.Duration.Seconds())

	if retries, ok := exec.CallData["retries"].(int); ok && retries > 0 {
		m.retries.WithLabelValues(exec.StepName).Add(float64(retries))
	}
}

// OnError реализует flow.Callback.
func (m *Metrics) OnError(_ context.Context, step *flow.Step, _ error) {
	m.inFlight.WithLabelValues(step.Name).Dec()
	m.steps.WithLabelValues(step.Name, StatusFailed).Inc()
}

// Handler отдаёт метрики из g для /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
