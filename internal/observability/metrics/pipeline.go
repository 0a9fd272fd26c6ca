package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds the extraction, search and report taps. It is shared
// by the API and the worker, each registering it on its own registry.
type PipelineMetrics struct {
	extractionTotal     *prometheus.CounterVec
	extractionCacheHits *prometheus.CounterVec
	extractionDuration  *prometheus.HistogramVec
	extractionMaterials *prometheus.HistogramVec
	poolWaiting         prometheus.Gauge
	searchTotal         *prometheus.CounterVec
	reportsTotal        *prometheus.CounterVec
}

func NewPipelineMetrics(registerer prometheus.Registerer, service string) *PipelineMetrics {
	constLabels := prometheus.Labels{"service": service}
	factory := promauto.With(registerer)

	return &PipelineMetrics{
		extractionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "extraction",
				Name:        "requests_total",
				Help:        "Total extraction requests by operation and status.",
				ConstLabels: constLabels,
			},
			[]string{"operation", "status"},
		),
		extractionCacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "extraction",
				Name:        "cache_hits_total",
				Help:        "Total extraction results served from cache.",
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
		extractionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "extraction",
				Name:        "processing_seconds",
				Help:        "Extraction processing time in seconds.",
				Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
		extractionMaterials: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "extraction",
				Name:        "materials_detected",
				Help:        "Distribution of extracted items per document.",
				Buckets:     []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
				ConstLabels: constLabels,
			},
			[]string{"operation"},
		),
		poolWaiting: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "extraction",
				Name:        "pool_waiting",
				Help:        "Number of extractions waiting for a worker slot.",
				ConstLabels: constLabels,
			},
		),
		searchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "vector",
				Name:        "search_total",
				Help:        "Total work-item searches by language and status.",
				ConstLabels: constLabels,
			},
			[]string{"language", "status"},
		),
		reportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "reports",
				Name:        "generated_total",
				Help:        "Total generated reports by type and status.",
				ConstLabels: constLabels,
			},
			[]string{"type", "status"},
		),
	}
}

func (m *PipelineMetrics) RecordExtraction(operation, status string, seconds float64, materials int) {
	m.extractionTotal.WithLabelValues(operation, status).Inc()
	if status == "error" {
		return
	}
	m.extractionDuration.WithLabelValues(operation).Observe(seconds)
	m.extractionMaterials.WithLabelValues(operation).Observe(float64(materials))
}

func (m *PipelineMetrics) RecordCacheHit(operation string) {
	m.extractionCacheHits.WithLabelValues(operation).Inc()
}

func (m *PipelineMetrics) SetPoolWaiting(n int) {
	m.poolWaiting.Set(float64(n))
}

func (m *PipelineMetrics) RecordSearch(language, status string) {
	if language == "" {
		language = "unknown"
	}
	m.searchTotal.WithLabelValues(language, status).Inc()
}

func (m *PipelineMetrics) RecordReport(reportType, status string) {
	if reportType == "" {
		reportType = "unknown"
	}
	m.reportsTotal.WithLabelValues(reportType, status).Inc()
}
