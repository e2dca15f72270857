// Package telemetry exposes Prometheus metrics and sets up OpenTelemetry
// tracing.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jobwatch"

// Metrics holds every collector on a private registry. It implements the
// observer interfaces of the monitor, alert and cron packages.
type Metrics struct {
	registry *prometheus.Registry

	checks        *prometheus.CounterVec
	checkDuration prometheus.Histogram
	cycleDuration prometheus.Histogram
	cycleJobs     prometheus.Gauge
	sourceUp      *prometheus.GaugeVec
	jenkinsUp     prometheus.Gauge
	alerts        *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors, together with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Job checks by job and outcome.",
		}, []string{"job", "outcome"}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Duration of one job check, fetch included.",
			Buckets:   prometheus.DefBuckets,
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one monitoring cycle.",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		cycleJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle_jobs",
			Help:      "Jobs checked in the last cycle.",
		}),
		sourceUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_up",
			Help:      "1 when the last fetch of the job's execution succeeded.",
		}, []string{"job"}),
		jenkinsUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jenkins_up",
			Help:      "1 when the last connectivity probe succeeded.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Incidents by kind and delivery result.",
		}, []string{"kind", "delivery"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.checks,
		m.checkDuration,
		m.cycleDuration,
		m.cycleJobs,
		m.sourceUp,
		m.jenkinsUp,
		m.alerts,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CheckCompleted implements monitor.Observer.
func (m *Metrics) CheckCompleted(jobID, outcome string, d time.Duration) {
	m.checks.WithLabelValues(jobID, outcome).Inc()
	m.checkDuration.Observe(d.Seconds())
}

// SourceState implements monitor.Observer.
func (m *Metrics) SourceState(jobID string, up bool) {
	m.sourceUp.WithLabelValues(jobID).Set(boolFloat(up))
}

// CycleCompleted implements monitor.Observer.
func (m *Metrics) CycleCompleted(d time.Duration, checked int) {
	m.cycleDuration.Observe(d.Seconds())
	m.cycleJobs.Set(float64(checked))
}

// AlertDelivered implements alert.Observer.
func (m *Metrics) AlertDelivered(kind, delivery string) {
	m.alerts.WithLabelValues(kind, delivery).Inc()
}

// SourceReachable implements cron.ProbeObserver.
func (m *Metrics) SourceReachable(up bool) {
	m.jenkinsUp.Set(boolFloat(up))
}

// ForgetJobs drops the per-job series of jobs no longer monitored.
func (m *Metrics) ForgetJobs(ids []string) {
	for _, id := range ids {
		m.sourceUp.DeleteLabelValues(id)
		m.checks.DeletePartialMatch(prometheus.Labels{"job": id})
	}
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
