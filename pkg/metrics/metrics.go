package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aws_assistant"

// Metrics holds the collectors for one registry. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	awsAttempts     *prometheus.CounterVec
	awsRetries      *prometheus.CounterVec
	toolInvocations *prometheus.CounterVec
	cycles          *prometheus.CounterVec
	toolCalls       prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		awsAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aws_attempts_total",
			Help:      "AWS API attempts by service, operation and outcome",
		}, []string{"service", "operation", "outcome"}),
		awsRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aws_retries_total",
			Help:      "AWS API retries by service and error kind",
		}, []string{"service", "kind"}),
		toolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool and result",
		}, []string{"tool", "ok"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cycles_total",
			Help:      "Completed query cycles by terminal outcome",
		}, []string{"outcome"}),
		toolCalls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_calls_per_query",
			Help:      "Tool executions needed to answer one query",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.awsAttempts, m.awsRetries, m.toolInvocations, m.cycles, m.toolCalls)
	}
	return m
}

func (m *Metrics) ObserveAttempt(service, operation, outcome string) {
	if m == nil {
		return
	}
	m.awsAttempts.WithLabelValues(service, operation, outcome).Inc()
}

func (m *Metrics) ObserveRetry(service, kind string) {
	if m == nil {
		return
	}
	m.awsRetries.WithLabelValues(service, kind).Inc()
}

func (m *Metrics) ObserveTool(tool string, ok bool) {
	if m == nil {
		return
	}
	label := "false"
	if ok {
		label = "true"
	}
	m.toolInvocations.WithLabelValues(tool, label).Inc()
}

func (m *Metrics) ObserveCycle(outcome string, toolCalls int) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.toolCalls.Observe(float64(toolCalls))
}
