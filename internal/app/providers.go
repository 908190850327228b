package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"omnisearch/internal/domain"
	"omnisearch/internal/infra/telemetry"
)

const tracerName = "omnisearch"

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

func NewMetrics(registry *prometheus.Registry) domain.Metrics {
	return telemetry.NewPrometheusMetrics(registry)
}

// NewTracer returns the tracer from the global provider. It is a no-op unless
// the embedding process installs an SDK provider.
func NewTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
