package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cron run outcomes.
const (
	RunSucceeded = "success"
	RunFailed    = "failure"
	RunSkipped   = "skipped"
)

// CronJobMetrics records scheduled job runs.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900, 1800},
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Cron job runs by outcome; skipped means another instance held the lock.",
	}, []string{"job", "outcome"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cron_job_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, lastSuccess)
	return &CronJobMetrics{
		duration:    duration,
		runs:        runs,
		lastSuccess: lastSuccess,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess counts a successful run and stamps its completion time.
func (c *CronJobMetrics) IncSuccess(job string, at time.Time) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), RunSucceeded).Inc()
	c.lastSuccess.WithLabelValues(normalizeLabel(job)).Set(float64(at.Unix()))
}

func (c *CronJobMetrics) IncFailure(job string) {
	c.inc(job, RunFailed)
}

func (c *CronJobMetrics) IncSkipped(job string) {
	c.inc(job, RunSkipped)
}

func (c *CronJobMetrics) inc(job, outcome string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), outcome).Inc()
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
