package metrics

import "github.com/prometheus/client_golang/prometheus"

// StoreMetrics holds Prometheus metrics for the log store.
type StoreMetrics struct {
	OperationDuration *prometheus.HistogramVec
	OperationFailures *prometheus.CounterVec
	LogEntries        prometheus.Gauge
	EntriesRemoved    prometheus.Counter
}

// NewStoreMetrics creates and registers log store metrics on the given registry.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of log store read-modify-write cycles in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"backend", "operation"}),
		OperationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_failures_total",
			Help:      "Total number of failed log store operations.",
		}, []string{"backend", "operation"}),
		LogEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "log_entries",
			Help:      "Number of entries in the log after the last successful operation.",
		}),
		EntriesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "entries_removed_total",
			Help:      "Total number of entries removed by delete operations.",
		}),
	}

	reg.MustRegister(m.OperationDuration, m.OperationFailures, m.LogEntries, m.EntriesRemoved)
	return m
}
