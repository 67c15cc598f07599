package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the attendance pipeline.
type Metrics struct {
	RecordsNormalized  prometheus.Counter
	ProvisionalRecords prometheus.Counter
	SummariesComputed  prometheus.Counter
	FindingsDetected   *prometheus.CounterVec
	RuleCacheHits      prometheus.Counter
	RuleCacheMisses    prometheus.Counter
	BatchDuration      prometheus.Histogram
	EmployeeFailures   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RecordsNormalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kintai_records_normalized_total",
			Help: "Daily labor records produced by the normalizer",
		}),
		ProvisionalRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kintai_provisional_records_total",
			Help: "Daily records persisted provisional due to missing stamps",
		}),
		SummariesComputed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kintai_summaries_computed_total",
			Help: "Monthly labor summaries aggregated",
		}),
		FindingsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kintai_findings_total",
			Help: "Violation findings by severity",
		}, []string{"severity"}),
		RuleCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kintai_rule_cache_hits_total",
			Help: "Legal rule lookups served from cache",
		}),
		RuleCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kintai_rule_cache_misses_total",
			Help: "Legal rule lookups that fell through to the store",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kintai_batch_duration_seconds",
			Help:    "Wall time of one (company, period) recompute run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		EmployeeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kintai_employee_pipeline_failures_total",
			Help: "Employee pipelines that failed within a batch run",
		}),
	}
}

// ObserveBatch records the duration of a completed batch run.
func (m *Metrics) ObserveBatch(d time.Duration) {
	m.BatchDuration.Observe(d.Seconds())
}

// IncRuleCacheHit counts a rule lookup served from cache.
func (m *Metrics) IncRuleCacheHit() { m.RuleCacheHits.Inc() }

// IncRuleCacheMiss counts a rule lookup that fell through to the store.
func (m *Metrics) IncRuleCacheMiss() { m.RuleCacheMisses.Inc() }
