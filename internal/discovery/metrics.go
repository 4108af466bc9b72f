package discovery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricFilterRuns    = "discovery_filter_runs_total"
	MetricEventsIn      = "discovery_events_considered_total"
	MetricEventsOut     = "discovery_events_matched_total"
	MetricRecordErrors  = "discovery_record_errors_total"
	MetricFilterLatency = "discovery_filter_latency_seconds"
)

// Metrics contains Prometheus metrics for the discovery pipeline.
// All operations are thread-safe.
type Metrics struct {
	filterRuns    prometheus.Counter
	eventsIn      prometheus.Counter
	eventsOut     prometheus.Counter
	recordErrors  prometheus.Counter
	filterLatency prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		filterRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricFilterRuns,
			Help: "Total number of nearby-filter pipeline runs",
		}),
		eventsIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEventsIn,
			Help: "Total number of candidate events fed into the pipeline",
		}),
		eventsOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricEventsOut,
			Help: "Total number of events surviving all active predicates",
		}),
		recordErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordErrors,
			Help: "Total number of per-record errors isolated during filtering",
		}),
		filterLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFilterLatency,
			Help:    "Histogram of pipeline run latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.filterRuns,
		m.eventsIn,
		m.eventsOut,
		m.recordErrors,
		m.filterLatency,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRun records the outcome of one pipeline run.
func (m *Metrics) ObserveRun(in, out, recordErrs int, elapsed time.Duration) {
	m.filterRuns.Inc()
	m.eventsIn.Add(float64(in))
	m.eventsOut.Add(float64(out))
	m.recordErrors.Add(float64(recordErrs))
	m.filterLatency.Observe(elapsed.Seconds())
}
