package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *CPVMetrics {
	t.Helper()
	m, err := NewCPVMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestNewCPVMetrics_DoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewCPVMetrics(registry)
	require.NoError(t, err)

	_, err = NewCPVMetrics(registry)
	assert.Error(t, err)
}

func TestCPVMetrics_RecordSearch(t *testing.T) {
	tests := []struct {
		name     string
		variant  string
		outcome  string
		duration time.Duration
		calls    int
	}{
		{name: "successful inline search", variant: "inline", outcome: "success", duration: 20 * time.Millisecond, calls: 2},
		{name: "skipped standalone search", variant: "standalone", outcome: "skipped", calls: 3},
		{name: "timed out search", variant: "inline", outcome: "timeout", duration: 5 * time.Second, calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMetrics(t)
			for i := 0; i < tt.calls; i++ {
				m.RecordSearch(tt.variant, tt.outcome, tt.duration)
			}

			count := testutil.ToFloat64(m.searchesTotal.WithLabelValues(tt.variant, tt.outcome))
			assert.InDelta(t, float64(tt.calls), count, 0.001)

			observed := testutil.CollectAndCount(m.searchDuration)
			if tt.duration > 0 {
				assert.Equal(t, 1, observed)
			} else {
				assert.Equal(t, 0, observed)
			}
		})
	}
}

func TestCPVMetrics_Counters(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCacheLookup("hit")
	m.RecordCacheLookup("hit")
	m.RecordCacheLookup("miss")
	m.RecordSelectionChange("add", "applied")
	m.RecordImportedRecords(42)
	m.RecordPrunedSearchLogs(7)
	m.RecordSessionValidation("cache", "valid")

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues("hit")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues("miss")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.selectionChangesTotal.WithLabelValues("add", "applied")), 0.001)
	assert.InDelta(t, 42.0, testutil.ToFloat64(m.importedRecordsTotal), 0.001)
	assert.InDelta(t, 7.0, testutil.ToFloat64(m.prunedSearchLogsTotal), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.sessionValidationTotal.WithLabelValues("cache", "valid")), 0.001)
}
