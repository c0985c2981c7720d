package jobmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics instruments asynq handlers. A nil *Metrics is valid and records
// nothing, which is what the worker uses when metrics are disabled.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lowStock prometheus.Gauge
	purged   prometheus.Counter
}

// NewMetrics registers the job collectors on reg. It returns nil when reg is
// nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agrodistri",
			Name:      "jobs_total",
			Help:      "Job executions by task type and outcome.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agrodistri",
			Name:      "jobs_failures_total",
			Help:      "Job executions that returned an error.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agrodistri",
			Name:      "job_duration_seconds",
			Help:      "Wall time of job executions.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"job"}),
		lowStock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agrodistri",
			Name:      "products_low_stock",
			Help:      "Active products below min_stock at the last scan.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agrodistri",
			Name:      "idempotency_keys_purged_total",
			Help:      "Idempotency keys deleted by the cleanup job.",
		}),
	}
	reg.MustRegister(m.runs, m.failures, m.duration, m.lowStock, m.purged)
	return m
}

// Run executes fn and records its duration and outcome under job. The error
// from fn is returned as is so asynq retry semantics are preserved.
func (m *Metrics) Run(job string, fn func() error) error {
	began := time.Now()
	err := fn()
	if m == nil {
		return err
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
		m.failures.WithLabelValues(job).Inc()
	}
	m.runs.WithLabelValues(job, outcome).Inc()
	m.duration.WithLabelValues(job).Observe(time.Since(began).Seconds())
	return err
}

func (m *Metrics) SetLowStock(count int) {
	if m == nil {
		return
	}
	m.lowStock.Set(float64(count))
}

func (m *Metrics) AddPurgedKeys(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}
