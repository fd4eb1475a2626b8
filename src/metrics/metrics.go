// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Evaluation outcomes.
const (
	OutcomeWarning   = "warning"
	OutcomeNoWarning = "none"
	OutcomeNoBudget  = "no_budget"
	OutcomeError     = "error"
)

// Metrics implements prometheus.Collector.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	budgetWarnings *prometheus.CounterVec
	evaluations    *prometheus.CounterVec
	evalDropped    prometheus.Counter
	evalQueueDepth prometheus.Gauge

	notifications *prometheus.CounterVec
	circuitState  *prometheus.GaugeVec
}

func New(namespace string) *Metrics {
	return &Metrics{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latencies in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		budgetWarnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_warnings_total",
				Help:      "Budget warnings raised, by tier",
			},
			[]string{"tier"},
		),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_evaluations_total",
				Help:      "Budget evaluations run, by outcome",
			},
			[]string{"outcome"},
		),
		evalDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "budget_evaluations_dropped_total",
				Help:      "Evaluations dropped because the queue was full or closed",
			},
		),
		evalQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "budget_evaluation_queue_depth",
				Help:      "Evaluations waiting in the queue",
			},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Outbound notification attempts, by result",
			},
			[]string{"result"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequests, m.httpDuration, m.budgetWarnings, m.evaluations,
		m.evalDropped, m.evalQueueDepth, m.notifications, m.circuitState,
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) BudgetWarning(tier string) {
	m.budgetWarnings.WithLabelValues(tier).Inc()
}

func (m *Metrics) Evaluation(outcome string) {
	m.evaluations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EvaluationDropped() {
	m.evalDropped.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	m.evalQueueDepth.Set(float64(n))
}

func (m *Metrics) NotificationSent(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.notifications.WithLabelValues(result).Inc()
}

// SetCircuitState records 0 for closed, 1 for open and 2 for half-open.
func (m *Metrics) SetCircuitState(name string, state int) {
	m.circuitState.WithLabelValues(name).Set(float64(state))
}
