// Package observability exposes Prometheus counters for conversation
// runs, model requests, and failures.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process metric set. A nil *Metrics is a valid
// no-op receiver so callers never need to branch.
type Metrics struct {
	ConversationsTotal *prometheus.CounterVec
	TurnsTotal         *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ClientErrors       *prometheus.CounterVec
	Retries            prometheus.Counter
}

// NewMetrics registers the metric set on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConversationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_conversations_total",
			Help: "Completed conversations by mode.",
		}, []string{"mode"}),
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_turns_total",
			Help: "Completed turns by mode and role.",
		}, []string{"mode", "role"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parley_model_request_duration_seconds",
			Help:    "Model request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),
		ClientErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_client_errors_total",
			Help: "Classified client errors by class and model.",
		}, []string{"class", "model"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parley_conversation_retries_total",
			Help: "Conversation-level retries after connection failures.",
		}),
	}

	reg.MustRegister(
		m.ConversationsTotal,
		m.TurnsTotal,
		m.RequestDuration,
		m.ClientErrors,
		m.Retries,
	)
	return m
}

// ObserveConversation records a completed conversation.
func (m *Metrics) ObserveConversation(mode string) {
	if m == nil {
		return
	}
	m.ConversationsTotal.WithLabelValues(mode).Inc()
}

// ObserveTurn records a completed turn.
func (m *Metrics) ObserveTurn(mode, role string) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(mode, role).Inc()
}

// ObserveRequest records one model request duration.
func (m *Metrics) ObserveRequest(model string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(model).Observe(seconds)
}

// ObserveClientError records a classified client failure.
func (m *Metrics) ObserveClientError(class, model string) {
	if m == nil {
		return
	}
	m.ClientErrors.WithLabelValues(class, model).Inc()
}

// ObserveRetry records a conversation-level retry.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}
