package telemetry

import (
	"time"

	"omnisearch/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveConnect(_ string, _ time.Duration, _ error) {}

func (n *NoopMetrics) ObserveDisconnect(_ string) {}

func (n *NoopMetrics) ObserveSync(_ string, _ time.Duration, _ error) {}

func (n *NoopMetrics) ObserveConnectorSearch(_ string, _ time.Duration, _ int, _ error) {}

func (n *NoopMetrics) ObserveFanOut(_ int, _ int, _ time.Duration) {}

func (n *NoopMetrics) ObserveProbe(_ string, _ domain.HealthState, _ time.Duration) {}

func (n *NoopMetrics) SetConnectedTools(_ int) {}

func (n *NoopMetrics) ObserveReconnect(_ string, _ error) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
