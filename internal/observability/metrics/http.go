package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "construction"

// HTTPServerMetrics instruments the API. Paths are reduced to their route
// template so material, project and report ids do not explode cardinality.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	pipeline *PipelineMetrics

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	bodyBytes *prometheus.HistogramVec
	inFlight  prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	route := []string{"service", "method", "path"}

	return &HTTPServerMetrics{
		registry: registry,
		pipeline: NewPipelineMetrics(registry, service),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, append(route, "status")),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
		}, route),
		bodyBytes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response body size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}, route),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "HTTP requests currently being served.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Pipeline returns the extraction, search and report taps registered on the
// same registry.
func (m *HTTPServerMetrics) Pipeline() *PipelineMetrics {
	return m.pipeline
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		began := time.Now()
		sw := &sizeWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		labels := []string{service, r.Method, normalizePath(r.URL.Path)}
		m.requests.WithLabelValues(append(labels, strconv.Itoa(sw.statusCode()))...).Inc()
		m.latency.WithLabelValues(labels...).Observe(time.Since(began).Seconds())
		m.bodyBytes.WithLabelValues(labels...).Observe(float64(sw.size))
	})
}

// Collections whose next path segment is an identifier.
var idSegments = map[string]string{
	"materials": "{id}",
	"projects":  "{id}",
	"reports":   "{id}",
	"jobs":      "{id}",
	"item":      "{rate_code}",
}

// Named sub-resources that share a prefix with an identifier route.
var fixedSegments = map[string]bool{
	"summary":  true,
	"search":   true,
	"stats":    true,
	"generate": true,
}

func normalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		placeholder, ok := idSegments[parts[i-1]]
		if !ok || parts[i] == "" || fixedSegments[parts[i]] {
			continue
		}
		parts[i] = placeholder
	}
	return "/" + strings.Join(parts, "/")
}

type sizeWriter struct {
	http.ResponseWriter
	code int
	size int
}

func (w *sizeWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *sizeWriter) Write(p []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.size += n
	return n, err
}

func (w *sizeWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *sizeWriter) statusCode() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}
