package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

const outcomeCompleted = "completed"

// WorkerMetrics observes queued extraction jobs. A scanned PDF that goes
// through OCR can take minutes, so job durations use wider buckets than the
// synchronous extraction histogram.
type WorkerMetrics struct {
	registry *prometheus.Registry
	pipeline *PipelineMetrics

	jobs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	running  prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	serviceLabel := prometheus.Labels{"service": service}

	return &WorkerMetrics{
		registry: registry,
		pipeline: NewPipelineMetrics(registry, service),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "jobs_total",
			Help:        "Extraction jobs handled, by outcome (completed or the error kind).",
			ConstLabels: serviceLabel,
		}, []string{"outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "job_duration_seconds",
			Help:        "Wall time of extraction jobs, by outcome.",
			Buckets:     prometheus.ExponentialBuckets(0.5, 2, 11),
			ConstLabels: serviceLabel,
		}, []string{"outcome"}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "jobs_running",
			Help:        "Extraction jobs currently being processed.",
			ConstLabels: serviceLabel,
		}),
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Pipeline() *PipelineMetrics {
	return m.pipeline
}

func (m *WorkerMetrics) StartJob() {
	m.running.Inc()
}

func (m *WorkerMetrics) FinishJob(elapsed time.Duration, err error) {
	m.running.Dec()
	outcome := outcomeCompleted
	if err != nil {
		outcome = domain.KindOf(err)
	}
	m.jobs.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
