package fcgx

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an optional Prometheus collector for client-observable events.
// A Client with no Metrics attached simply skips every observation; nothing
// about correctness depends on it.
type Metrics struct {
	requestDuration prometheus.Histogram
	recordsWritten  prometheus.Counter
	recordsRead     prometheus.Counter
	poisonedConns   prometheus.Counter
}

// NewMetrics creates and registers a Metrics collector against reg. Pass
// prometheus.DefaultRegisterer to use the global registry, or a dedicated
// registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fcgx",
			Name:      "request_duration_seconds",
			Help:      "Duration of a complete FastCGI Execute call.",
			Buckets:   prometheus.DefBuckets,
		}),
		recordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fcgx",
			Name:      "records_written_total",
			Help:      "Number of BEGIN_REQUEST records and complete PARAMS/STDIN streams written to the transport; a stream of several records counts once.",
		}),
		recordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fcgx",
			Name:      "records_read_total",
			Help:      "Number of FastCGI records read from the transport.",
		}),
		poisonedConns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fcgx",
			Name:      "poisoned_connections_total",
			Help:      "Number of client connections, keep-alive or short-lived, poisoned by an error or undrained cancellation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requestDuration, m.recordsWritten, m.recordsRead, m.poisonedConns)
	}
	return m
}

func (m *Metrics) observeDuration(seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.Observe(seconds)
}

func (m *Metrics) incWritten() {
	if m == nil {
		return
	}
	m.recordsWritten.Inc()
}

func (m *Metrics) incRead() {
	if m == nil {
		return
	}
	m.recordsRead.Inc()
}

func (m *Metrics) incPoisoned() {
	if m == nil {
		return
	}
	m.poisonedConns.Inc()
}
