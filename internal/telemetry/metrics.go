package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CPVMetrics contains Prometheus metrics for CPV lookups and selection changes.
type CPVMetrics struct {
	searchesTotal          *prometheus.CounterVec
	searchDuration         *prometheus.HistogramVec
	cacheLookupsTotal      *prometheus.CounterVec
	selectionChangesTotal  *prometheus.CounterVec
	importedRecordsTotal   prometheus.Counter
	prunedSearchLogsTotal  prometheus.Counter
	sessionValidationTotal *prometheus.CounterVec
}

// NewCPVMetrics creates and registers the CPV metrics on registry.
func NewCPVMetrics(registry prometheus.Registerer) (*CPVMetrics, error) {
	m := &CPVMetrics{
		searchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tendersync",
				Name:      "cpv_searches_total",
				Help:      "Total number of CPV searches by widget variant and outcome",
			},
			[]string{"variant", "outcome"}, // outcome: success, skipped, error, timeout, stale
		),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tendersync",
				Name:      "cpv_search_duration_seconds",
				Help:      "Time spent waiting on the CPV record store",
				// 1ms .. ~4s
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 13),
			},
			[]string{"variant"},
		),
		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tendersync",
				Name:      "cpv_cache_lookups_total",
				Help:      "CPV search cache lookups by result",
			},
			[]string{"result"}, // hit, miss
		),
		selectionChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tendersync",
				Name:      "cpv_selection_changes_total",
				Help:      "Add and remove operations on CPV selections",
			},
			[]string{"operation", "outcome"}, // outcome: applied, ignored
		),
		importedRecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tendersync",
			Name:      "cpv_imported_records_total",
			Help:      "CPV records written by dataset imports",
		}),
		prunedSearchLogsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tendersync",
			Name:      "search_logs_pruned_total",
			Help:      "Search log rows removed by retention",
		}),
		sessionValidationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tendersync",
				Name:      "session_validations_total",
				Help:      "Bearer token validations by source and outcome",
			},
			[]string{"source", "outcome"}, // source: cache, provider
		),
	}

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *CPVMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.searchesTotal.Describe(ch)
	m.searchDuration.Describe(ch)
	m.cacheLookupsTotal.Describe(ch)
	m.selectionChangesTotal.Describe(ch)
	m.importedRecordsTotal.Describe(ch)
	m.prunedSearchLogsTotal.Describe(ch)
	m.sessionValidationTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *CPVMetrics) Collect(ch chan<- prometheus.Metric) {
	m.searchesTotal.Collect(ch)
	m.searchDuration.Collect(ch)
	m.cacheLookupsTotal.Collect(ch)
	m.selectionChangesTotal.Collect(ch)
	m.importedRecordsTotal.Collect(ch)
	m.prunedSearchLogsTotal.Collect(ch)
	m.sessionValidationTotal.Collect(ch)
}

// RecordSearch counts a search; skipped searches never reach the store and are not timed.
func (m *CPVMetrics) RecordSearch(variant, outcome string, duration time.Duration) {
	m.searchesTotal.WithLabelValues(variant, outcome).Inc()
	if duration > 0 {
		m.searchDuration.WithLabelValues(variant).Observe(duration.Seconds())
	}
}

func (m *CPVMetrics) RecordSelectionChange(operation, outcome string) {
	m.selectionChangesTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *CPVMetrics) RecordCacheLookup(result string) {
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *CPVMetrics) RecordImportedRecords(n int) {
	m.importedRecordsTotal.Add(float64(n))
}

func (m *CPVMetrics) RecordPrunedSearchLogs(n int64) {
	m.prunedSearchLogsTotal.Add(float64(n))
}

func (m *CPVMetrics) RecordSessionValidation(source, outcome string) {
	m.sessionValidationTotal.WithLabelValues(source, outcome).Inc()
}
