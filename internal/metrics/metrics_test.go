package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObservePass(t *testing.T) {
	m := New(nil)

	m.ObservePass("portfolio", ResultSuccess, 200*time.Millisecond)
	m.ObservePass("portfolio", ResultFailure, time.Second)
	m.ObservePass("portfolio", ResultFailure, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Passes.WithLabelValues("portfolio", ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Passes.WithLabelValues("portfolio", ResultFailure)))
}

func TestMetrics_ObserveLedgerCall(t *testing.T) {
	m := New(nil)

	m.ObserveLedgerCall("getCardInfo", nil)
	m.ObserveLedgerCall("getCardInfo", errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerCalls.WithLabelValues("getCardInfo", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerCalls.WithLabelValues("getCardInfo", ResultFailure)))
}

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveProbes(3)
	m.ObserveEvents(10)
	m.ObservePass("history", ResultSuccess, time.Millisecond)
	m.ObserveLedgerCall("getCardInfo", nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"smartcards_aggregation_passes_total",
		"smartcards_aggregation_pass_duration_seconds",
		"smartcards_ledger_calls_total",
		"smartcards_card_probes_per_enumeration",
		"smartcards_events_fetched_per_pass",
	}, names)
}

func TestMetrics_UntouchedVecsAreNotGathered(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.NotEqual(t, "smartcards_ledger_calls_total", f.GetName())
		assert.NotEqual(t, "smartcards_aggregation_passes_total", f.GetName())
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePass("portfolio", ResultSuccess, time.Second)
		m.ObserveLedgerCall("x", nil)
		m.ObserveProbes(1)
		m.ObserveEvents(1)
	})
}
