// Package jobmetrics instruments the asynq worker.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the worker collectors.
type Metrics struct {
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	purged        *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer, or returns the process-wide
// set registered on prometheus.DefaultRegisterer when registerer is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() {
		defaultMetrics = register(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Observe runs fn as one execution of job and records its outcome and duration.
// fn's error is returned unchanged.
func (m *Metrics) Observe(job string, fn func() error) error {
	start := time.Now()
	err := fn()
	if m == nil {
		return err
	}
	m.runs.WithLabelValues(job, outcome(err == nil)).Inc()
	m.duration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	return err
}

// AddPurged counts rows removed by a maintenance job.
func (m *Metrics) AddPurged(table string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.purged.WithLabelValues(table).Add(float64(count))
}

// AddNotification counts one delivery attempt of a review notice.
func (m *Metrics) AddNotification(kind string, delivered bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome(delivered)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campussync_jobs_total",
			Help: "Job executions by job and status.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campussync_job_duration_seconds",
			Help:    "Job execution time.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campussync_maintenance_purged_rows_total",
			Help: "Rows removed by maintenance jobs.",
		}, []string{"table"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campussync_review_notifications_total",
			Help: "Review notice deliveries by kind and status.",
		}, []string{"kind", "status"}),
	}
	registerer.MustRegister(m.runs, m.duration, m.purged, m.notifications)
	return m
}
