// Package metrics defines the Prometheus collectors for aggregation passes and
// ledger traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pass results
const (
	ResultSuccess    = "success"
	ResultFailure    = "failure"
	ResultSuperseded = "superseded"
)

// Metrics groups the collectors the service records into
type Metrics struct {
	Passes       *prometheus.CounterVec
	PassDuration prometheus.Histogram
	LedgerCalls  *prometheus.CounterVec
	CardProbes   prometheus.Histogram
	EventsSeen   prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartcards",
			Name:      "aggregation_passes_total",
			Help:      "Aggregation passes by operation and result.",
		}, []string{"operation", "result"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smartcards",
			Name:      "aggregation_pass_duration_seconds",
			Help:      "Wall time of successful aggregation passes.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		LedgerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartcards",
			Name:      "ledger_calls_total",
			Help:      "Ledger reads and writes by method and result.",
		}, []string{"method", "result"}),
		CardProbes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smartcards",
			Name:      "card_probes_per_enumeration",
			Help:      "Card IDs probed before an enumeration terminated.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		}),
		EventsSeen: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smartcards",
			Name:      "events_fetched_per_pass",
			Help:      "Raw ledger events fetched by a pass before ownership filtering.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Passes, m.PassDuration, m.LedgerCalls, m.CardProbes, m.EventsSeen)
	}
	return m
}

// ObservePass records the outcome of one pass
func (m *Metrics) ObservePass(operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(operation, result).Inc()
	if result == ResultSuccess {
		m.PassDuration.Observe(elapsed.Seconds())
	}
}

// ObserveLedgerCall records one ledger round trip
func (m *Metrics) ObserveLedgerCall(method string, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.LedgerCalls.WithLabelValues(method, result).Inc()
}

// ObserveProbes records how many IDs an enumeration probed
func (m *Metrics) ObserveProbes(n int) {
	if m == nil {
		return
	}
	m.CardProbes.Observe(float64(n))
}

// ObserveEvents records how many raw events a pass fetched
func (m *Metrics) ObserveEvents(n int) {
	if m == nil {
		return
	}
	m.EventsSeen.Observe(float64(n))
}
