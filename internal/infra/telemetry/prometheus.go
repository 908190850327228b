package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"omnisearch/internal/domain"
)

type PrometheusMetrics struct {
	connectDuration  *prometheus.HistogramVec
	disconnects      *prometheus.CounterVec
	syncDuration     *prometheus.HistogramVec
	searchDuration   *prometheus.HistogramVec
	searchResults    *prometheus.CounterVec
	fanOutDuration   prometheus.Histogram
	fanOutResults    prometheus.Histogram
	fanOutConnectors prometheus.Histogram
	probeDuration    *prometheus.HistogramVec
	connectedTools   prometheus.Gauge
	reconnects       *prometheus.CounterVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)
	latencyBuckets := []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

	return &PrometheusMetrics{
		connectDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omnisearch_connect_duration_seconds",
				Help:    "Duration of connector handshakes in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"tool", "status"},
		),
		disconnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnisearch_disconnects_total",
				Help: "Total number of tool disconnects",
			},
			[]string{"tool"},
		),
		syncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omnisearch_sync_duration_seconds",
				Help:    "Duration of connector syncs in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"tool", "status"},
		),
		searchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omnisearch_connector_search_duration_seconds",
				Help:    "Duration of per-connector search calls in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"tool", "status"},
		),
		searchResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnisearch_connector_search_results_total",
				Help: "Total number of results returned by connectors",
			},
			[]string{"tool"},
		),
		fanOutDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "omnisearch_search_duration_seconds",
				Help:    "Duration of aggregated searches in seconds",
				Buckets: latencyBuckets,
			},
		),
		fanOutResults: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "omnisearch_search_results",
				Help:    "Number of results returned by aggregated searches",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
			},
		),
		fanOutConnectors: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "omnisearch_search_connectors",
				Help:    "Number of connectors queried per aggregated search",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
			},
		),
		probeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "omnisearch_probe_duration_seconds",
				Help:    "Duration of health probes in seconds",
				Buckets: latencyBuckets,
			},
			[]string{"tool", "state"},
		),
		connectedTools: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "omnisearch_connected_tools",
				Help: "Current number of connected tools",
			},
		),
		reconnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "omnisearch_reconnect_attempts_total",
				Help: "Total number of automatic reconnect attempts",
			},
			[]string{"tool", "status"},
		),
	}
}

func (p *PrometheusMetrics) ObserveConnect(toolID string, duration time.Duration, err error) {
	p.connectDuration.WithLabelValues(toolID, statusLabel(err)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveDisconnect(toolID string) {
	p.disconnects.WithLabelValues(toolID).Inc()
}

func (p *PrometheusMetrics) ObserveSync(toolID string, duration time.Duration, err error) {
	p.syncDuration.WithLabelValues(toolID, statusLabel(err)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveConnectorSearch(toolID string, duration time.Duration, results int, err error) {
	p.searchDuration.WithLabelValues(toolID, statusLabel(err)).Observe(duration.Seconds())
	if results > 0 {
		p.searchResults.WithLabelValues(toolID).Add(float64(results))
	}
}

func (p *PrometheusMetrics) ObserveFanOut(connectors int, results int, duration time.Duration) {
	p.fanOutDuration.Observe(duration.Seconds())
	p.fanOutResults.Observe(float64(results))
	p.fanOutConnectors.Observe(float64(connectors))
}

func (p *PrometheusMetrics) ObserveProbe(toolID string, state domain.HealthState, duration time.Duration) {
	p.probeDuration.WithLabelValues(toolID, string(state)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) SetConnectedTools(count int) {
	p.connectedTools.Set(float64(count))
}

func (p *PrometheusMetrics) ObserveReconnect(toolID string, err error) {
	p.reconnects.WithLabelValues(toolID, statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
