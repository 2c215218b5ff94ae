package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	providerLoads       *prometheus.CounterVec
	markerRebuilds      prometheus.Counter
	markersPerRebuild   prometheus.Histogram
	activeSessions      prometheus.Gauge
}

// New creates a fresh Metrics registry with HTTP and map metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archive",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by the archive service",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "archive",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by the archive service",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	providerLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archive",
		Name:      "map_provider_loads_total",
		Help:      "Map provider load attempts by outcome",
	}, []string{"outcome"})

	markerRebuilds := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "archive",
		Name:      "marker_rebuilds_total",
		Help:      "Number of marker set rebuilds",
	})

	markersPerRebuild := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "archive",
		Name:      "markers_per_rebuild",
		Help:      "Markers created by each rebuild, across all sessions",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
	})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "archive",
		Name:      "map_sessions_active",
		Help:      "Open map sessions",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		providerLoads,
		markerRebuilds,
		markersPerRebuild,
		activeSessions,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		providerLoads:       providerLoads,
		markerRebuilds:      markerRebuilds,
		markersPerRebuild:   markersPerRebuild,
		activeSessions:      activeSessions,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveProviderLoad counts a provider load attempt.
func (m *Metrics) ObserveProviderLoad(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.providerLoads.WithLabelValues(outcome).Inc()
}

// ObserveMarkerRebuild records a rebuild that created n markers.
func (m *Metrics) ObserveMarkerRebuild(n int) {
	if m == nil {
		return
	}
	m.markerRebuilds.Inc()
	m.markersPerRebuild.Observe(float64(n))
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
